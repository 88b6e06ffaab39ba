package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"bathy-export/internal/arcgis"
	"bathy-export/internal/geo"
)

var flagProbeBBox string

var probeCmd = &cobra.Command{
	Use:   "probe [source-name-or-url]",
	Short: "Check an ImageServer endpoint and print its descriptor",
	Long: `Fetches the service metadata (?f=json) for a registered source name or
a raw ImageServer URL and prints the fields that matter for downloading:
pixel type, native resolution, extent and CRS. With --bbox it also reports
whether the region falls inside the service extent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&flagProbeBBox, "bbox", "", "region as xmin,ymin,xmax,ymax to check against the service extent")
}

func runProbe(cmd *cobra.Command, args []string) error {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}

	url := target
	if src, err := settings.ResolveSource(target); err == nil {
		url = src.URL
		fmt.Printf("Source:       %s\n", src.Name)
	}
	if url == "" {
		return fmt.Errorf("no source or URL given")
	}

	client := arcgis.NewClient(logger)
	info, err := client.Probe(context.Background(), url)
	if err != nil {
		return fmt.Errorf("service is not usable: %w", err)
	}

	fmt.Printf("Name:         %s\n", info.Name)
	fmt.Printf("Data type:    %s\n", info.ServiceDataType)
	fmt.Printf("Pixel type:   %s (%d band(s))\n", info.PixelType, info.BandCount)
	fmt.Printf("Pixel size:   %.12g x %.12g\n", info.PixelSizeX, info.PixelSizeY)
	fmt.Printf("Extent:       %g,%g,%g,%g (EPSG:%d)\n",
		info.Extent.XMin, info.Extent.YMin, info.Extent.XMax, info.Extent.YMax,
		info.Extent.SpatialReference.WKID)
	if len(info.MinValues) > 0 && len(info.MaxValues) > 0 {
		fmt.Printf("Value range:  %g to %g\n", info.MinValues[0], info.MaxValues[0])
	}

	if flagProbeBBox != "" {
		bbox, err := parseBBox(flagProbeBBox)
		if err != nil {
			return err
		}
		extent := geo.BoundingBox{
			XMin: info.Extent.XMin, YMin: info.Extent.YMin,
			XMax: info.Extent.XMax, YMax: info.Extent.YMax,
		}
		if extent.Contains(bbox) {
			fmt.Printf("Coverage:     %s is inside the service extent\n", bbox.String())
		} else {
			fmt.Printf("Coverage:     %s is NOT fully covered by the service extent\n", bbox.String())
		}
	}
	return nil
}

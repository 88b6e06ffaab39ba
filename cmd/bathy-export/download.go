package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bathy-export/internal/arcgis"
	"bathy-export/internal/downloads"
	"bathy-export/internal/downloads/bathymetry"
	"bathy-export/internal/geo"
	"bathy-export/internal/raster"
)

var (
	flagBBox      string
	flagWidth     int
	flagHeight    int
	flagSource    string
	flagModes     []string
	flagAllModes  bool
	flagCRS       string
	flagTargetCRS string
	flagNoTiling  bool
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a region as one or more GeoTIFF files",
	Long: `Downloads a bounding box from the selected source at the requested
pixel size. Each mode produces one output file; modes other than "combined"
filter the depth grid by the companion TID (measurement type) grid.

Modes: combined, bathymetry_only, land_only, direct_measurements_only,
direct_unknown_measurements_only.

Example:
  bathy-export download --bbox="-10,40,0,50" --width 2400 --height 2400 \
    --mode combined --mode direct_measurements_only`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVar(&flagBBox, "bbox", "", "region as xmin,ymin,xmax,ymax (required)")
	downloadCmd.Flags().IntVar(&flagWidth, "width", 0, "output width in pixels (required)")
	downloadCmd.Flags().IntVar(&flagHeight, "height", 0, "output height in pixels (required)")
	downloadCmd.Flags().StringVar(&flagSource, "source", "", "data source name (see 'sources')")
	downloadCmd.Flags().StringArrayVar(&flagModes, "mode", nil, "mask mode, repeatable (default combined)")
	downloadCmd.Flags().BoolVar(&flagAllModes, "all-modes", false, "produce every mask mode in one run")
	downloadCmd.Flags().StringVar(&flagCRS, "crs", "EPSG:4326", "CRS of the bounding box")
	downloadCmd.Flags().StringVar(&flagTargetCRS, "target-crs", "", "reproject outputs to this CRS before writing")
	downloadCmd.Flags().BoolVar(&flagNoTiling, "no-tiling", false, "refuse instead of tiling requests above the single-fetch limit")
	downloadCmd.MarkFlagRequired("bbox")
	downloadCmd.MarkFlagRequired("width")
	downloadCmd.MarkFlagRequired("height")
}

func parseBBox(s string) (geo.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geo.BoundingBox{}, fmt.Errorf("bbox needs 4 comma-separated values, got %d", len(parts))
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geo.BoundingBox{}, fmt.Errorf("bbox component %q: %w", p, err)
		}
		vals[i] = v
	}
	return geo.BoundingBox{XMin: vals[0], YMin: vals[1], XMax: vals[2], YMax: vals[3]}, nil
}

func resolveModes() ([]bathymetry.MaskMode, error) {
	if flagAllModes {
		return bathymetry.AllMaskModes, nil
	}
	if len(flagModes) == 0 {
		return []bathymetry.MaskMode{bathymetry.MaskCombined}, nil
	}
	var modes []bathymetry.MaskMode
	for _, s := range flagModes {
		m, err := bathymetry.ParseMaskMode(s)
		if err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	return modes, nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	bbox, err := parseBBox(flagBBox)
	if err != nil {
		return err
	}

	modes, err := resolveModes()
	if err != nil {
		return err
	}

	source, err := settings.ResolveSource(flagSource)
	if err != nil {
		return err
	}

	var classification *raster.Source
	for _, m := range modes {
		if m.RequiresClassification() {
			tid, ok := raster.LookupSource("GEBCO 2025 TID")
			if !ok {
				return fmt.Errorf("no classification source available for masked modes")
			}
			classification = &tid
			break
		}
	}

	targetCRS := flagTargetCRS
	if targetCRS == "" {
		targetCRS = settings.TargetCRS
	}

	req := downloads.Request{
		BBox:      bbox,
		Width:     flagWidth,
		Height:    flagHeight,
		OutputDir: settings.OutputDir,
		CRS:       flagCRS,
		TargetCRS: targetCRS,
		Tiling:    settings.TilingEnabled && !flagNoTiling,
	}

	client := arcgis.NewClient(logger)
	d := bathymetry.NewDownloader(client, logger, bathymetry.Options{
		Source:         source,
		Classification: classification,
		Request:        req,
		Modes:          modes,
		Progress: func(percent int) {
			fmt.Fprintf(os.Stderr, "\rProgress: %3d%%", percent)
		},
		Status: func(message string) {
			fmt.Fprintf(os.Stderr, "\n%s\n", message)
		},
		TrackEvent: trackEvent,
	})

	// Ctrl-C turns into cooperative cancellation: the run stops at the next
	// checkpoint and removes anything it already wrote.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		d.Cancel()
	}()

	paths, err := d.Run(ctx)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		if downloads.IsCancelled(err) {
			fmt.Fprintln(os.Stderr, "Download cancelled.")
			return nil
		}
		return err
	}

	logger.Info("download complete", zap.Int("files", len(paths)))
	for _, p := range paths {
		fmt.Println(p)
	}
	if source.Attribution != "" {
		fmt.Fprintf(os.Stderr, "Data attribution: %s\n", source.Attribution)
	}
	return nil
}

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"bathy-export/internal/raster"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the available data sources",
	RunE:  runSources,
}

func runSources(cmd *cobra.Command, args []string) error {
	names := make([]string, 0, len(raster.Sources))
	for name := range raster.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		src := raster.Sources[name]
		marker := " "
		if name == settings.DefaultSource {
			marker = "*"
		}
		fmt.Printf("%s %-18s %-15s %s\n", marker, src.Name, src.Class, src.URL)
	}

	for _, c := range settings.CustomSources {
		if !c.Enabled {
			continue
		}
		fmt.Printf("  %-18s %-15s %s (custom)\n", c.Name, raster.ClassLegacy, c.URL)
	}
	return nil
}

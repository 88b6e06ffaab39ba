package main

import (
	"fmt"
	"os"

	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bathy-export/internal/config"
)

var (
	// Global flags
	verbose   bool
	outputDir string

	// Logger
	logger *zap.Logger

	// User settings, loaded once before any command runs
	settings *config.UserSettings

	// Analytics client; nil unless the user opted in and a key was linked
	phClient posthog.Client
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bathy-export",
	Short: "Download bathymetry grids from ArcGIS ImageServer endpoints",
	Long: `bathy-export fetches gridded bathymetry (and its measurement-type
classification) from ArcGIS ImageServer exportImage endpoints, assembles
tiled responses into a seamless raster, and writes typed GeoTIFF files.

Large regions are split into overlapping fetches and blended; outputs can
be filtered by measurement type (direct soundings, land, etc.) and
reprojected before writing.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		settings, err = config.LoadSettings()
		if err != nil {
			logger.Warn("failed to load settings, using defaults", zap.Error(err))
			settings = config.DefaultSettings()
		}
		if outputDir != "" {
			settings.OutputDir = outputDir
		}

		if settings.AnalyticsEnabled && PostHogKey != "" {
			client, err := posthog.NewWithConfig(PostHogKey, posthog.Config{Endpoint: PostHogHost})
			if err != nil {
				logger.Warn("failed to initialize analytics", zap.Error(err))
			} else {
				phClient = client
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if phClient != nil {
			_ = phClient.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// trackEvent forwards an analytics event when the user opted in
func trackEvent(event string, properties map[string]interface{}) {
	if phClient == nil {
		return
	}
	props := posthog.NewProperties().Set("app_version", AppVersion)
	for k, v := range properties {
		props.Set(k, v)
	}
	_ = phClient.Enqueue(posthog.Capture{
		DistinctId: "cli_user",
		Event:      event,
		Properties: props,
	})
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "out", "o", "", "output directory (defaults to the configured download path)")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

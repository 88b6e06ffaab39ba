package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"bathy-export/internal/raster"
)

// CustomSource represents a user-added ImageServer endpoint. Custom sources
// are treated as legacy depth services: float32 output, -9999 nodata.
type CustomSource struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Download settings
	OutputDir     string `json:"outputDir"`
	DefaultSource string `json:"defaultSource"`

	// TilingEnabled splits large requests into overlapping fetches instead
	// of refusing them
	TilingEnabled bool `json:"tilingEnabled"`

	// TargetCRS reprojects outputs when set; empty keeps the request CRS
	TargetCRS string `json:"targetCrs,omitempty"`

	// Custom ImageServer endpoints
	CustomSources []CustomSource `json:"customSources"`

	// AnalyticsEnabled sends anonymous usage events when true
	AnalyticsEnabled bool `json:"analyticsEnabled"`
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	homeDir, _ := os.UserHomeDir()
	outputDir := filepath.Join(homeDir, "Downloads", "bathymetry")

	return &UserSettings{
		OutputDir:        outputDir,
		DefaultSource:    "GEBCO 2025",
		TilingEnabled:    true,
		CustomSources:    []CustomSource{},
		AnalyticsEnabled: false,
	}
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()
	baseDir := filepath.Join(homeDir, ".bathy-export")
	os.MkdirAll(baseDir, 0755)
	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from disk
func LoadSettings() (*UserSettings, error) {
	settingsPath := GetSettingsPath()

	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any missing fields
	defaults := DefaultSettings()
	if settings.OutputDir == "" {
		settings.OutputDir = defaults.OutputDir
	}
	if settings.DefaultSource == "" {
		settings.DefaultSource = defaults.DefaultSource
	}

	return &settings, nil
}

// SaveSettings saves user settings to disk
func SaveSettings(settings *UserSettings) error {
	settingsPath := GetSettingsPath()

	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// ValidateCustomSource validates a custom source configuration
func ValidateCustomSource(source *CustomSource) error {
	if source.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if source.URL == "" {
		return fmt.Errorf("source URL is required")
	}
	return nil
}

// ResolveSource finds a source by name: the built-in registry first, then
// the user's custom sources
func (s *UserSettings) ResolveSource(name string) (raster.Source, error) {
	if name == "" {
		name = s.DefaultSource
	}
	if src, ok := raster.LookupSource(name); ok {
		return src, nil
	}
	for _, c := range s.CustomSources {
		if c.Name == name && c.Enabled {
			src := raster.LegacySource(c.URL)
			src.Name = c.Name
			src.Attribution = c.Attribution
			return src, nil
		}
	}
	return raster.Source{}, fmt.Errorf("unknown source %q", name)
}

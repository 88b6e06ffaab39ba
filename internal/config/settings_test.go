package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bathy-export/internal/raster"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.NotEmpty(t, s.OutputDir)
	assert.Equal(t, "GEBCO 2025", s.DefaultSource)
	assert.True(t, s.TilingEnabled)
	assert.False(t, s.AnalyticsEnabled)
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s := DefaultSettings()
	s.TilingEnabled = false
	s.AnalyticsEnabled = true
	s.CustomSources = []CustomSource{{Name: "local", URL: "https://example.com/ImageServer", Enabled: true}}
	require.NoError(t, SaveSettings(s))

	loaded, err := LoadSettings()
	require.NoError(t, err)
	assert.False(t, loaded.TilingEnabled)
	assert.True(t, loaded.AnalyticsEnabled)
	require.Len(t, loaded.CustomSources, 1)
	assert.Equal(t, "local", loaded.CustomSources[0].Name)
}

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().DefaultSource, s.DefaultSource)
}

func TestValidateCustomSource(t *testing.T) {
	assert.Error(t, ValidateCustomSource(&CustomSource{URL: "https://x"}))
	assert.Error(t, ValidateCustomSource(&CustomSource{Name: "x"}))
	assert.NoError(t, ValidateCustomSource(&CustomSource{Name: "x", URL: "https://x"}))
}

func TestResolveSource(t *testing.T) {
	s := DefaultSettings()
	s.CustomSources = []CustomSource{
		{Name: "harbor", URL: "https://example.com/ImageServer", Enabled: true},
		{Name: "disabled", URL: "https://example.com/other", Enabled: false},
	}

	src, err := s.ResolveSource("")
	require.NoError(t, err)
	assert.Equal(t, "GEBCO 2025", src.Name)

	src, err = s.ResolveSource("GEBCO 2025 TID")
	require.NoError(t, err)
	assert.Equal(t, raster.ClassClassification, src.Class)

	src, err = s.ResolveSource("harbor")
	require.NoError(t, err)
	assert.Equal(t, raster.ClassLegacy, src.Class)
	assert.Equal(t, "https://example.com/ImageServer", src.URL)

	_, err = s.ResolveSource("disabled")
	assert.Error(t, err)

	_, err = s.ResolveSource("nope")
	assert.Error(t, err)
}

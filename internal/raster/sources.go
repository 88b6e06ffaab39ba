package raster

import "bathy-export/internal/geo"

// SourceClass groups data sources by the numeric representation their grids
// must be preserved in
type SourceClass string

const (
	// ClassDepthGrid is the current-generation bathymetry grid (int16)
	ClassDepthGrid SourceClass = "depth_grid"

	// ClassClassification is the TID measurement-type grid (int8)
	ClassClassification SourceClass = "classification"

	// ClassLegacy covers older or unrecognized depth services (float32)
	ClassLegacy SourceClass = "legacy"
)

// Source describes an ImageServer data source
type Source struct {
	Name                   string
	URL                    string
	Class                  SourceClass
	ServiceCRS             string
	NativePixelSizeDegrees float64 // 0 for metric services
	DefaultExtent          geo.BoundingBox
	Attribution            string
}

// NativeResolutionOnly reports whether the source is served at a fixed
// angular resolution (degree-based bbox and pixel size)
func (s Source) NativeResolutionOnly() bool {
	return s.NativePixelSizeDegrees != 0
}

// GEBCO 2025 native grid resolution: 15 arc-seconds
const gebcoPixelSizeDegrees = 0.004166666666666667

var worldExtent4326 = geo.BoundingBox{XMin: -180, YMin: -90, XMax: 180, YMax: 90}

// Sources is the registry of known data sources, keyed by name
var Sources = map[string]Source{
	"GEBCO 2025": {
		Name:                   "GEBCO 2025",
		URL:                    "https://gis.ccom.unh.edu/server/rest/services/GEBCO2025/GEBCO_2025_IS/ImageServer",
		Class:                  ClassDepthGrid,
		ServiceCRS:             "EPSG:4326",
		NativePixelSizeDegrees: gebcoPixelSizeDegrees,
		DefaultExtent:          worldExtent4326,
		Attribution:            "GEBCO Compilation Group (2025) GEBCO 2025 Grid (doi:10.5285/37c52e96-24ea-67ce-e063-7086abc05f29)",
	},
	"GEBCO 2025 TID": {
		Name:                   "GEBCO 2025 TID",
		URL:                    "https://gis.ccom.unh.edu/server/rest/services/GEBCO2025/GEBCO_2025_TID_IS/ImageServer",
		Class:                  ClassClassification,
		ServiceCRS:             "EPSG:4326",
		NativePixelSizeDegrees: gebcoPixelSizeDegrees,
		DefaultExtent:          worldExtent4326,
		Attribution:            "GEBCO Compilation Group (2025) GEBCO 2025 Grid (doi:10.5285/37c52e96-24ea-67ce-e063-7086abc05f29)",
	},
}

// LookupSource finds a registered source by name
func LookupSource(name string) (Source, bool) {
	s, ok := Sources[name]
	return s, ok
}

// LegacySource builds a source entry for an arbitrary ImageServer URL,
// preserved as float32 with the default bathymetry nodata
func LegacySource(url string) Source {
	return Source{
		Name:       "custom",
		URL:        url,
		Class:      ClassLegacy,
		ServiceCRS: "EPSG:3857",
	}
}

package bathymetry

import (
	"fmt"
	"math"

	"bathy-export/internal/downloads"
	"bathy-export/internal/raster"
)

// MaskMode selects which depth cells survive into an output, judged by the
// measurement-type code (TID) of the matching classification cell.
type MaskMode string

const (
	// MaskCombined keeps everything; no classification grid is consulted
	MaskCombined MaskMode = "combined"

	// MaskBathymetryOnly keeps cells whose code is non-zero (water)
	MaskBathymetryOnly MaskMode = "bathymetry_only"

	// MaskLandOnly keeps cells whose code is zero (land elevation)
	MaskLandOnly MaskMode = "land_only"

	// MaskDirectMeasurements keeps cells with direct measurement codes 10-20
	MaskDirectMeasurements MaskMode = "direct_measurements_only"

	// MaskDirectUnknownMeasurements keeps direct measurements plus the
	// unknown-source codes 44 and 70
	MaskDirectUnknownMeasurements MaskMode = "direct_unknown_measurements_only"
)

// AllMaskModes lists every mode in output order
var AllMaskModes = []MaskMode{
	MaskCombined,
	MaskBathymetryOnly,
	MaskLandOnly,
	MaskDirectMeasurements,
	MaskDirectUnknownMeasurements,
}

// ParseMaskMode validates a mode name
func ParseMaskMode(s string) (MaskMode, error) {
	for _, m := range AllMaskModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mask mode %q", s)
}

// RequiresClassification reports whether the mode needs the TID grid
func (m MaskMode) RequiresClassification() bool {
	return m != MaskCombined
}

// FileLabel is the short form of the mode used in output filenames
func (m MaskMode) FileLabel() string {
	switch m {
	case MaskBathymetryOnly:
		return "bathymetry"
	case MaskLandOnly:
		return "land"
	case MaskDirectMeasurements:
		return "direct"
	case MaskDirectUnknownMeasurements:
		return "direct_unknown"
	default:
		return string(m)
	}
}

// Keep is the mode's predicate on a measurement-type code
func (m MaskMode) Keep(code int) bool {
	switch m {
	case MaskCombined:
		return true
	case MaskBathymetryOnly:
		return code != 0
	case MaskLandOnly:
		return code == 0
	case MaskDirectMeasurements:
		return code >= 10 && code <= 20
	case MaskDirectUnknownMeasurements:
		return (code >= 10 && code <= 20) || code == 44 || code == 70
	default:
		return false
	}
}

// ApplyMask blanks every depth cell whose classification code fails the
// mode's predicate. A cell with no classification value is blanked too: with
// no code there is no evidence the cell belongs in the selection. The depth
// buffer is modified in place.
func ApplyMask(depth, classification *raster.Buffer, mode MaskMode) error {
	if !mode.RequiresClassification() {
		return nil
	}
	if classification == nil {
		return downloads.NewError(downloads.KindUnexpectedShape,
			fmt.Sprintf("mask mode %s needs a classification grid", mode))
	}
	if classification.Width != depth.Width || classification.Height != depth.Height {
		return downloads.NewError(downloads.KindUnexpectedShape,
			fmt.Sprintf("classification grid is %dx%d, depth grid is %dx%d",
				classification.Width, classification.Height, depth.Width, depth.Height))
	}

	nan := raster.Nodata()
	for i, code := range classification.Data {
		if raster.IsNodata(code) {
			depth.Data[i] = nan
			continue
		}
		if !mode.Keep(int(math.Round(float64(code)))) {
			depth.Data[i] = nan
		}
	}
	return nil
}

package downloads

import (
	"fmt"
	"path/filepath"
	"strings"

	"bathy-export/internal/geo"
)

// ProgressFunc receives coarse percent updates (0-100, monotonic per run)
type ProgressFunc func(percent int)

// StatusFunc receives human-readable stage descriptions
type StatusFunc func(message string)

// State identifies the stage a run is currently in
type State string

const (
	StatePlanning     State = "planning"
	StateFetching     State = "fetching"
	StateAssembling   State = "assembling"
	StateMasking      State = "masking"
	StateReprojecting State = "reprojecting"
	StateWriting      State = "writing"
	StateDone         State = "done"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// StateFunc receives state transitions
type StateFunc func(state State)

// Request describes one export: a region, an output size, and where the
// results should land
type Request struct {
	BBox geo.BoundingBox `json:"bbox"`

	// Width/Height in pixels of the requested canvas
	Width  int `json:"width"`
	Height int `json:"height"`

	// OutputDir receives the generated files
	OutputDir string `json:"outputDir"`

	// CRS of the bounding box, "EPSG:<code>"
	CRS string `json:"crs"`

	// TargetCRS, when set and different from CRS, triggers reprojection
	// of the assembled raster before writing
	TargetCRS string `json:"targetCrs,omitempty"`

	// Tiling splits large requests into several fetches; when false any
	// request above the un-tiled maximum fails up front
	Tiling bool `json:"tiling"`
}

// Validate checks the request geometry before any work starts
func (r *Request) Validate() error {
	if err := r.BBox.Validate(); err != nil {
		return WrapError(KindUnexpectedShape, "invalid bounding box", err)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return NewError(KindUnexpectedShape,
			fmt.Sprintf("invalid output size %dx%d", r.Width, r.Height))
	}
	if r.OutputDir == "" {
		return NewError(KindWriteFailure, "output directory not set")
	}
	for _, crs := range []string{r.CRS, r.TargetCRS} {
		if crs == "" {
			continue
		}
		if _, err := geo.EPSGCode(crs); err != nil {
			return WrapError(KindUnexpectedShape, "invalid CRS", err)
		}
	}
	return nil
}

// ValidateOutputPath checks that a file path stays inside the output
// directory, guarding against traversal from templated filenames
func ValidateOutputPath(outputDir, filePath string) error {
	if outputDir == "" || filePath == "" {
		return fmt.Errorf("output directory or file path is empty")
	}

	absDir, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for output directory: %w", err)
	}

	absFile, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for file: %w", err)
	}

	relPath, err := filepath.Rel(absDir, absFile)
	if err != nil {
		return fmt.Errorf("failed to get relative path: %w", err)
	}

	if strings.HasPrefix(relPath, "..") {
		return fmt.Errorf("path %s is outside output directory %s", filePath, outputDir)
	}

	return nil
}

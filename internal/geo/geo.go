package geo

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
)

// BoundingBox represents an axis-aligned rectangle in a known CRS
type BoundingBox struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// Validate checks if the bounding box is valid
func (b BoundingBox) Validate() error {
	if b.XMin >= b.XMax {
		return fmt.Errorf("xmin (%f) must be less than xmax (%f)", b.XMin, b.XMax)
	}
	if b.YMin >= b.YMax {
		return fmt.Errorf("ymin (%f) must be less than ymax (%f)", b.YMin, b.YMax)
	}
	return nil
}

// Width returns the horizontal extent in world units
func (b BoundingBox) Width() float64 {
	return b.XMax - b.XMin
}

// Height returns the vertical extent in world units
func (b BoundingBox) Height() float64 {
	return b.YMax - b.YMin
}

// Bound converts the bounding box to an orb.Bound
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.XMin, b.YMin},
		Max: orb.Point{b.XMax, b.YMax},
	}
}

// Intersects reports whether the two boxes share any area
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return b.Bound().Intersects(other.Bound())
}

// Contains reports whether other lies entirely within b
func (b BoundingBox) Contains(other BoundingBox) bool {
	bb := b.Bound()
	return bb.Contains(orb.Point{other.XMin, other.YMin}) &&
		bb.Contains(orb.Point{other.XMax, other.YMax})
}

// String formats the box as "xmin,ymin,xmax,ymax" for exportImage requests
func (b BoundingBox) String() string {
	return fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(b.XMin), formatCoord(b.YMin), formatCoord(b.XMax), formatCoord(b.YMax))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package geo

import "fmt"

// Affine is the linear mapping from pixel (col, row) to world (x, y):
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// For north-up rasters B and D are zero and E is negative (row 0 is the
// northernmost row).
type Affine struct {
	A, B, C, D, E, F float64
}

// AffineFromBounds builds the north-up transform tying pixel (0,0) to the
// north-west corner of b for a raster of the given pixel dimensions
func AffineFromBounds(b BoundingBox, width, height int) Affine {
	return Affine{
		A: b.Width() / float64(width),
		B: 0,
		C: b.XMin,
		D: 0,
		E: -b.Height() / float64(height),
		F: b.YMax,
	}
}

// Apply maps a pixel coordinate to world coordinates
func (t Affine) Apply(col, row float64) (x, y float64) {
	return t.A*col + t.B*row + t.C, t.D*col + t.E*row + t.F
}

// Invert returns the world-to-pixel transform
func (t Affine) Invert() (Affine, error) {
	det := t.A*t.E - t.B*t.D
	if det == 0 {
		return Affine{}, fmt.Errorf("affine transform is not invertible")
	}
	inv := Affine{
		A: t.E / det,
		B: -t.B / det,
		D: -t.D / det,
		E: t.A / det,
	}
	inv.C = -(inv.A*t.C + inv.B*t.F)
	inv.F = -(inv.D*t.C + inv.E*t.F)
	return inv, nil
}

// Bounds returns the world extent of a raster with this transform
func (t Affine) Bounds(width, height int) BoundingBox {
	x0, y0 := t.Apply(0, 0)
	x1, y1 := t.Apply(float64(width), float64(height))
	b := BoundingBox{XMin: x0, YMin: y1, XMax: x1, YMax: y0}
	if b.XMin > b.XMax {
		b.XMin, b.XMax = b.XMax, b.XMin
	}
	if b.YMin > b.YMax {
		b.YMin, b.YMax = b.YMax, b.YMin
	}
	return b
}

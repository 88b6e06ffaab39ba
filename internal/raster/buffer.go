// Package raster holds the in-memory grid representation shared by the
// download pipeline, the data-source registry that fixes each source's
// numeric representation, and the response decoding strategies.
package raster

import (
	"math"

	"bathy-export/internal/geo"
)

// Buffer is a single-band 2-D grid, row-major with row 0 at the geographic
// north-west corner. Cells without a valid measurement hold NaN regardless of
// the final on-disk type; conversion to an integer sentinel happens only at
// write time.
type Buffer struct {
	Width, Height int
	Data          []float32
	Transform     *geo.Affine
	CRS           string // "EPSG:nnnn", empty when unknown
}

// NewBuffer allocates a buffer with every cell set to the nodata sentinel
func NewBuffer(width, height int) *Buffer {
	data := make([]float32, width*height)
	nan := float32(math.NaN())
	for i := range data {
		data[i] = nan
	}
	return &Buffer{Width: width, Height: height, Data: data}
}

// At returns the value at (col, row)
func (b *Buffer) At(col, row int) float32 {
	return b.Data[row*b.Width+col]
}

// Set stores a value at (col, row)
func (b *Buffer) Set(col, row int, v float32) {
	b.Data[row*b.Width+col] = v
}

// Clone returns a deep copy sharing no data with b
func (b *Buffer) Clone() *Buffer {
	data := make([]float32, len(b.Data))
	copy(data, b.Data)
	clone := &Buffer{Width: b.Width, Height: b.Height, Data: data, CRS: b.CRS}
	if b.Transform != nil {
		t := *b.Transform
		clone.Transform = &t
	}
	return clone
}

// IsNodata reports whether v is the in-memory nodata sentinel
func IsNodata(v float32) bool {
	return math.IsNaN(float64(v))
}

// Nodata returns the in-memory sentinel
func Nodata() float32 {
	return float32(math.NaN())
}

// Package bathymetry implements the raster download engine: it plans tiled
// exportImage fetches for a requested region, assembles the responses into a
// seamless canvas, applies measurement-type masking, reprojects when asked,
// and writes typed GeoTIFF outputs.
package bathymetry

import (
	"fmt"

	"bathy-export/internal/downloads"
	"bathy-export/internal/geo"
)

const (
	// TileMaxEdge is the largest edge of a single exportImage fetch when
	// tiling is active
	TileMaxEdge = 2000

	// TileOverlap is the margin, in pixels, each fetch is expanded by on
	// every side that has a neighbor, so adjacent responses share resampled
	// cells and can be blended without seams
	TileOverlap = 5

	// MaxUntiledEdge is the largest canvas edge allowed for a single
	// un-tiled fetch
	MaxUntiledEdge = 14000

	// LargeCanvasThreshold is the edge above which a run is flagged as
	// large; it only triggers an advisory, never a failure
	LargeCanvasThreshold = 10000
)

// PixelRect is a half-open pixel rectangle [X0,X1) x [Y0,Y1) in canvas
// coordinates
type PixelRect struct {
	X0, Y0, X1, Y1 int
}

// Width returns the rectangle's horizontal pixel count
func (r PixelRect) Width() int { return r.X1 - r.X0 }

// Height returns the rectangle's vertical pixel count
func (r PixelRect) Height() int { return r.Y1 - r.Y0 }

// TileSpec is one planned fetch. Core is the tile's exclusive region of the
// canvas; Fetch is Core grown by the overlap margin (clamped to the canvas),
// and BBox is Fetch's world extent, which is what goes on the wire.
type TileSpec struct {
	Col, Row int
	Core     PixelRect
	Fetch    PixelRect
	BBox     geo.BoundingBox
}

// Plan is the full fetch schedule for one canvas
type Plan struct {
	Width, Height int
	Transform     geo.Affine
	BBox          geo.BoundingBox
	Tiles         []TileSpec
}

// Tiled reports whether the plan needs more than one fetch
func (p *Plan) Tiled() bool { return len(p.Tiles) > 1 }

// PlanOptions tunes the planner; zero values take the package defaults
type PlanOptions struct {
	TileEdge   int
	Overlap    int
	MaxUntiled int
	Tiling     bool
}

func (o PlanOptions) withDefaults() PlanOptions {
	if o.TileEdge <= 0 {
		o.TileEdge = TileMaxEdge
	}
	if o.Overlap < 0 {
		o.Overlap = TileOverlap
	}
	if o.Overlap == 0 {
		o.Overlap = TileOverlap
	}
	if o.MaxUntiled <= 0 {
		o.MaxUntiled = MaxUntiledEdge
	}
	return o
}

// PlanTiles lays out the fetches for a canvas of width x height pixels
// covering bbox. With tiling off, any canvas within the un-tiled maximum is a
// single fetch and anything larger fails before touching the network. With
// tiling on, canvases above the tile edge are cut into a ceil-divided grid of
// overlapping fetches.
func PlanTiles(bbox geo.BoundingBox, width, height int, opts PlanOptions) (*Plan, error) {
	if err := bbox.Validate(); err != nil {
		return nil, downloads.WrapError(downloads.KindUnexpectedShape, "invalid bounding box", err)
	}
	if width <= 0 || height <= 0 {
		return nil, downloads.NewError(downloads.KindUnexpectedShape,
			fmt.Sprintf("invalid canvas size %dx%d", width, height))
	}
	opts = opts.withDefaults()

	plan := &Plan{
		Width:     width,
		Height:    height,
		Transform: geo.AffineFromBounds(bbox, width, height),
		BBox:      bbox,
	}

	needsTiling := width > opts.TileEdge || height > opts.TileEdge

	if !opts.Tiling || !needsTiling {
		if !opts.Tiling && (width > opts.MaxUntiled || height > opts.MaxUntiled) {
			e := downloads.NewError(downloads.KindSizeLimitExceeded,
				fmt.Sprintf("requested size %dx%d exceeds the un-tiled maximum of %d pixels per side; enable tiling or request a smaller area",
					width, height, opts.MaxUntiled))
			e.RequestedWidth = width
			e.RequestedHeight = height
			e.MaxSize = opts.MaxUntiled
			return nil, e
		}
		whole := PixelRect{X0: 0, Y0: 0, X1: width, Y1: height}
		plan.Tiles = []TileSpec{{
			Core:  whole,
			Fetch: whole,
			BBox:  bbox,
		}}
		return plan, nil
	}

	cols := (width + opts.TileEdge - 1) / opts.TileEdge
	rows := (height + opts.TileEdge - 1) / opts.TileEdge

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			core := PixelRect{
				X0: col * opts.TileEdge,
				Y0: row * opts.TileEdge,
				X1: min(width, (col+1)*opts.TileEdge),
				Y1: min(height, (row+1)*opts.TileEdge),
			}
			fetch := PixelRect{
				X0: max(0, core.X0-opts.Overlap),
				Y0: max(0, core.Y0-opts.Overlap),
				X1: min(width, core.X1+opts.Overlap),
				Y1: min(height, core.Y1+opts.Overlap),
			}
			plan.Tiles = append(plan.Tiles, TileSpec{
				Col:   col,
				Row:   row,
				Core:  core,
				Fetch: fetch,
				BBox:  worldRect(plan.Transform, fetch),
			})
		}
	}
	return plan, nil
}

// worldRect maps a canvas pixel rectangle to its world extent
func worldRect(t geo.Affine, r PixelRect) geo.BoundingBox {
	x0, y0 := t.Apply(float64(r.X0), float64(r.Y0))
	x1, y1 := t.Apply(float64(r.X1), float64(r.Y1))
	b := geo.BoundingBox{XMin: x0, YMin: y1, XMax: x1, YMax: y0}
	if b.XMin > b.XMax {
		b.XMin, b.XMax = b.XMax, b.XMin
	}
	if b.YMin > b.YMax {
		b.YMin, b.YMax = b.YMax, b.YMin
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

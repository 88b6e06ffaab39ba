package bathymetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bathy-export/internal/downloads"
	"bathy-export/internal/geo"
)

func TestPlanSingleFetch(t *testing.T) {
	bbox := geo.BoundingBox{XMin: -10, YMin: 40, XMax: -5, YMax: 45}
	plan, err := PlanTiles(bbox, 1000, 800, PlanOptions{Tiling: true})
	require.NoError(t, err)

	require.Len(t, plan.Tiles, 1)
	assert.False(t, plan.Tiled())
	tile := plan.Tiles[0]
	assert.Equal(t, PixelRect{0, 0, 1000, 800}, tile.Core)
	assert.Equal(t, tile.Core, tile.Fetch)
	assert.Equal(t, bbox, tile.BBox)
}

func TestPlanGrid(t *testing.T) {
	bbox := geo.BoundingBox{XMin: 0, YMin: 0, XMax: 45, YMax: 45}
	plan, err := PlanTiles(bbox, 4500, 4500, PlanOptions{Tiling: true})
	require.NoError(t, err)

	// ceil(4500/2000) = 3 per axis
	require.Len(t, plan.Tiles, 9)
	assert.True(t, plan.Tiled())

	// Interior tile: overlap on all sides
	center := plan.Tiles[4]
	assert.Equal(t, 1, center.Col)
	assert.Equal(t, 1, center.Row)
	assert.Equal(t, PixelRect{2000, 2000, 4000, 4000}, center.Core)
	assert.Equal(t, PixelRect{1995, 1995, 4005, 4005}, center.Fetch)

	// Corner tile: overlap clamped at the canvas edge
	first := plan.Tiles[0]
	assert.Equal(t, PixelRect{0, 0, 2000, 2000}, first.Core)
	assert.Equal(t, PixelRect{0, 0, 2005, 2005}, first.Fetch)

	// Last column/row tiles are the remainder
	last := plan.Tiles[8]
	assert.Equal(t, PixelRect{4000, 4000, 4500, 4500}, last.Core)
	assert.Equal(t, PixelRect{3995, 3995, 4500, 4500}, last.Fetch)
}

func TestPlanCoresPartitionCanvas(t *testing.T) {
	bbox := geo.BoundingBox{XMin: 0, YMin: 0, XMax: 10, YMax: 10}
	plan, err := PlanTiles(bbox, 4100, 2050, PlanOptions{Tiling: true})
	require.NoError(t, err)

	covered := make([]bool, 4100*2050)
	for _, tile := range plan.Tiles {
		for y := tile.Core.Y0; y < tile.Core.Y1; y++ {
			for x := tile.Core.X0; x < tile.Core.X1; x++ {
				idx := y*4100 + x
				assert.False(t, covered[idx], "cores must not overlap")
				covered[idx] = true
			}
		}
	}
	for i, c := range covered {
		require.True(t, c, "pixel %d not covered by any core", i)
	}
}

func TestPlanTileBBoxMatchesTransform(t *testing.T) {
	bbox := geo.BoundingBox{XMin: -10, YMin: 40, XMax: 0, YMax: 50}
	plan, err := PlanTiles(bbox, 2500, 2500, PlanOptions{Tiling: true})
	require.NoError(t, err)

	for _, tile := range plan.Tiles {
		// World extent of the fetch rect must sit inside the request bbox
		assert.True(t, bbox.Contains(tile.BBox) || bbox == tile.BBox,
			"tile bbox %v escapes request bbox", tile.BBox)

		// And its pixel density must match the canvas
		wpp := tile.BBox.Width() / float64(tile.Fetch.Width())
		assert.InDelta(t, bbox.Width()/2500, wpp, 1e-9)
	}
}

func TestPlanSizeLimit(t *testing.T) {
	bbox := geo.BoundingBox{XMin: 0, YMin: 0, XMax: 1, YMax: 1}

	_, err := PlanTiles(bbox, 2000, 2000, PlanOptions{Tiling: false, MaxUntiled: 1999})
	require.Error(t, err)
	assert.Equal(t, downloads.KindSizeLimitExceeded, downloads.KindOf(err))

	var derr *downloads.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, 2000, derr.RequestedWidth)
	assert.Equal(t, 1999, derr.MaxSize)

	// Same size with tiling enabled plans without error
	plan, err := PlanTiles(bbox, 2000, 2000, PlanOptions{Tiling: true, MaxUntiled: 1999})
	require.NoError(t, err)
	assert.Len(t, plan.Tiles, 1)
}

func TestPlanUntiledWithinLimit(t *testing.T) {
	bbox := geo.BoundingBox{XMin: 0, YMin: 0, XMax: 1, YMax: 1}
	plan, err := PlanTiles(bbox, 5000, 3000, PlanOptions{Tiling: false})
	require.NoError(t, err)
	require.Len(t, plan.Tiles, 1)
	assert.Equal(t, PixelRect{0, 0, 5000, 3000}, plan.Tiles[0].Fetch)
}

func TestPlanRejectsBadGeometry(t *testing.T) {
	_, err := PlanTiles(geo.BoundingBox{XMin: 5, YMin: 0, XMax: 1, YMax: 1}, 10, 10, PlanOptions{})
	assert.Equal(t, downloads.KindUnexpectedShape, downloads.KindOf(err))

	_, err = PlanTiles(geo.BoundingBox{XMin: 0, YMin: 0, XMax: 1, YMax: 1}, 0, 10, PlanOptions{})
	assert.Equal(t, downloads.KindUnexpectedShape, downloads.KindOf(err))
}

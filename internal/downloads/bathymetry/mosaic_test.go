package bathymetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bathy-export/internal/downloads"
	"bathy-export/internal/raster"
)

func constantTile(w, h int, v float32) *raster.Buffer {
	b := raster.NewBuffer(w, h)
	for i := range b.Data {
		b.Data[i] = v
	}
	return b
}

func TestBlendTileRules(t *testing.T) {
	canvas := raster.NewBuffer(4, 4)
	canvas.Set(0, 0, 10)
	canvas.Set(1, 0, 20)

	tile := constantTile(4, 4, 30)
	tile.Set(1, 0, raster.Nodata())
	tile.Set(2, 0, raster.Nodata())

	require.NoError(t, BlendTile(canvas, tile, PixelRect{0, 0, 4, 4}))

	assert.Equal(t, float32(20), canvas.At(0, 0), "both valid: mean")
	assert.Equal(t, float32(20), canvas.At(1, 0), "incoming nodata: existing wins")
	assert.True(t, raster.IsNodata(canvas.At(2, 0)), "neither valid: stays nodata")
	assert.Equal(t, float32(30), canvas.At(3, 0), "existing nodata: incoming wins")
}

func TestBlendTileSeamlessOverlap(t *testing.T) {
	// Two vertically adjacent tiles of the same constant field must leave
	// the canvas uniform, including the shared overlap rows.
	canvas := raster.NewBuffer(10, 10)
	top := constantTile(10, 7, 42)    // rows 0-6
	bottom := constantTile(10, 7, 42) // rows 3-9

	require.NoError(t, BlendTile(canvas, top, PixelRect{0, 0, 10, 7}))
	require.NoError(t, BlendTile(canvas, bottom, PixelRect{0, 3, 10, 10}))

	for i, v := range canvas.Data {
		require.Equal(t, float32(42), v, "cell %d", i)
	}
}

func TestBlendTileOrderIndependent(t *testing.T) {
	a := constantTile(10, 7, 10)
	b := constantTile(10, 7, 20)

	c1 := raster.NewBuffer(10, 10)
	require.NoError(t, BlendTile(c1, a, PixelRect{0, 0, 10, 7}))
	require.NoError(t, BlendTile(c1, b, PixelRect{0, 3, 10, 10}))

	c2 := raster.NewBuffer(10, 10)
	require.NoError(t, BlendTile(c2, b, PixelRect{0, 3, 10, 10}))
	require.NoError(t, BlendTile(c2, a, PixelRect{0, 0, 10, 7}))

	for i := range c1.Data {
		n1, n2 := raster.IsNodata(c1.Data[i]), raster.IsNodata(c2.Data[i])
		require.Equal(t, n1, n2)
		if !n1 {
			require.Equal(t, c1.Data[i], c2.Data[i])
		}
	}

	// The overlap rows hold the mean
	assert.Equal(t, float32(15), c1.At(5, 4))
}

func TestBlendTileShapeMismatch(t *testing.T) {
	canvas := raster.NewBuffer(10, 10)
	tile := constantTile(5, 5, 1)

	err := BlendTile(canvas, tile, PixelRect{0, 0, 6, 5})
	require.Error(t, err)
	assert.Equal(t, downloads.KindUnexpectedShape, downloads.KindOf(err))
}

func TestBlendTileOutOfBounds(t *testing.T) {
	canvas := raster.NewBuffer(10, 10)
	tile := constantTile(5, 5, 1)

	err := BlendTile(canvas, tile, PixelRect{8, 8, 13, 13})
	require.Error(t, err)
	assert.Equal(t, downloads.KindUnexpectedShape, downloads.KindOf(err))
}

package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBoxValidate(t *testing.T) {
	assert.NoError(t, BoundingBox{XMin: -10, YMin: 40, XMax: 0, YMax: 50}.Validate())
	assert.Error(t, BoundingBox{XMin: 0, YMin: 40, XMax: 0, YMax: 50}.Validate())
	assert.Error(t, BoundingBox{XMin: -10, YMin: 50, XMax: 0, YMax: 40}.Validate())
}

func TestBoundingBoxString(t *testing.T) {
	b := BoundingBox{XMin: -10.5, YMin: 40, XMax: -5, YMax: 45.25}
	assert.Equal(t, "-10.5,40,-5,45.25", b.String())
}

func TestBoundingBoxContains(t *testing.T) {
	outer := BoundingBox{XMin: 0, YMin: 0, XMax: 10, YMax: 10}
	assert.True(t, outer.Contains(BoundingBox{XMin: 1, YMin: 1, XMax: 9, YMax: 9}))
	assert.False(t, outer.Contains(BoundingBox{XMin: 1, YMin: 1, XMax: 11, YMax: 9}))
	assert.True(t, outer.Intersects(BoundingBox{XMin: 5, YMin: 5, XMax: 15, YMax: 15}))
	assert.False(t, outer.Intersects(BoundingBox{XMin: 20, YMin: 20, XMax: 30, YMax: 30}))
}

func TestAffineFromBounds(t *testing.T) {
	b := BoundingBox{XMin: -10, YMin: 40, XMax: 0, YMax: 50}
	tr := AffineFromBounds(b, 100, 200)

	// Pixel (0,0) corner is the north-west corner
	x, y := tr.Apply(0, 0)
	assert.Equal(t, -10.0, x)
	assert.Equal(t, 50.0, y)

	// Opposite corner
	x, y = tr.Apply(100, 200)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 40.0, y)

	assert.Equal(t, b, tr.Bounds(100, 200))
}

func TestAffineInvert(t *testing.T) {
	tr := AffineFromBounds(BoundingBox{XMin: -10, YMin: 40, XMax: 0, YMax: 50}, 100, 200)
	inv, err := tr.Invert()
	require.NoError(t, err)

	for _, p := range [][2]float64{{0, 0}, {50, 100}, {13.5, 77.25}} {
		x, y := tr.Apply(p[0], p[1])
		col, row := inv.Apply(x, y)
		assert.InDelta(t, p[0], col, 1e-9)
		assert.InDelta(t, p[1], row, 1e-9)
	}

	_, err = (Affine{}).Invert()
	assert.Error(t, err)
}

func TestEPSGCode(t *testing.T) {
	code, err := EPSGCode("EPSG:4326")
	require.NoError(t, err)
	assert.Equal(t, 4326, code)

	code, err = EPSGCode("epsg:3857")
	require.NoError(t, err)
	assert.Equal(t, 3857, code)

	_, err = EPSGCode("WGS84")
	assert.Error(t, err)
}

func TestProj4ForCRS(t *testing.T) {
	def, err := Proj4ForCRS("EPSG:4326")
	require.NoError(t, err)
	assert.Contains(t, def, "+proj=longlat")

	def, err = Proj4ForCRS("EPSG:3857")
	require.NoError(t, err)
	assert.Contains(t, def, "+proj=merc")

	_, err = Proj4ForCRS("EPSG:27700")
	assert.Error(t, err)
}

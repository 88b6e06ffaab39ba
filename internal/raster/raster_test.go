package raster

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bathy-export/pkg/geotiff"
)

func TestNewBufferStartsEmpty(t *testing.T) {
	b := NewBuffer(3, 2)
	assert.Equal(t, 6, len(b.Data))
	for _, v := range b.Data {
		assert.True(t, IsNodata(v))
	}

	b.Set(1, 1, -42)
	assert.Equal(t, float32(-42), b.At(1, 1))
	assert.True(t, IsNodata(b.At(0, 0)))
}

func TestBufferClone(t *testing.T) {
	b := NewBuffer(2, 2)
	b.Set(0, 0, 5)
	b.CRS = "EPSG:4326"

	c := b.Clone()
	c.Set(0, 0, 9)
	assert.Equal(t, float32(5), b.At(0, 0))
	assert.Equal(t, "EPSG:4326", c.CRS)
}

func TestRuleForClass(t *testing.T) {
	r := RuleForClass(ClassDepthGrid)
	assert.Equal(t, geotiff.SampleInt16, r.Type)
	assert.Equal(t, float64(-32768), r.Nodata)
	assert.True(t, r.ZeroIsValid)

	r = RuleForClass(ClassClassification)
	assert.Equal(t, geotiff.SampleInt8, r.Type)
	assert.Equal(t, float64(-128), r.Nodata)
	assert.True(t, r.ZeroIsValid)

	r = RuleForClass(ClassLegacy)
	assert.Equal(t, geotiff.SampleFloat32, r.Type)
	assert.Equal(t, float64(-9999), r.Nodata)
	assert.False(t, r.ZeroIsValid)
}

func TestMaskDeclaredNodata(t *testing.T) {
	rule := RuleForClass(ClassDepthGrid)

	b := NewBuffer(3, 1)
	b.Data[0] = -32768
	b.Data[1] = 0
	b.Data[2] = -100

	declared := float64(-32768)
	rule.MaskDeclaredNodata(b, &declared)
	assert.True(t, IsNodata(b.Data[0]))
	assert.Equal(t, float32(0), b.Data[1])
	assert.Equal(t, float32(-100), b.Data[2])

	// A declared nodata of zero is ignored for zero-is-valid sources
	zero := float64(0)
	rule.MaskDeclaredNodata(b, &zero)
	assert.Equal(t, float32(0), b.Data[1])

	// ...but honored for legacy float sources
	legacy := RuleForClass(ClassLegacy)
	legacy.MaskDeclaredNodata(b, &zero)
	assert.True(t, IsNodata(b.Data[1]))

	// nil declared masks nothing
	rule.MaskDeclaredNodata(b, nil)
	assert.Equal(t, float32(-100), b.Data[2])

	// A declared NaN needs no replacement: NaN cells already are the
	// in-memory sentinel, and valid cells are untouched
	nanBuf := NewBuffer(2, 1)
	nanBuf.Data[0] = Nodata()
	nanBuf.Data[1] = -250
	nan := math.NaN()
	legacy.MaskDeclaredNodata(nanBuf, &nan)
	assert.True(t, IsNodata(nanBuf.Data[0]))
	assert.Equal(t, float32(-250), nanBuf.Data[1])
}

func encodeTestTIFF(t *testing.T, values []int16, w, h int, nodata float64) []byte {
	t.Helper()
	grid := &geotiff.Grid{Width: w, Height: h, Type: geotiff.SampleInt16, Int16: values}
	ref := &geotiff.GeoRef{
		OriginX: -10, OriginY: 50,
		PixelScaleX: 0.1, PixelScaleY: 0.1,
		EPSG: 4326, Geographic: true,
	}
	var buf bytes.Buffer
	require.NoError(t, geotiff.Encode(&buf, grid, ref, &nodata))
	return buf.Bytes()
}

func TestDecodeResponseTyped(t *testing.T) {
	data := encodeTestTIFF(t, []int16{-100, 0, -32768, 25}, 2, 2, -32768)

	res, err := DecodeResponse("image/tiff", data)
	require.NoError(t, err)
	assert.True(t, res.Typed)
	assert.Equal(t, geotiff.SampleInt16, res.NativeType)
	require.NotNil(t, res.DeclaredNodata)
	assert.Equal(t, float64(-32768), *res.DeclaredNodata)
	assert.Empty(t, res.Diagnostic)

	assert.Equal(t, float32(-100), res.Buffer.At(0, 0))
	assert.Equal(t, "EPSG:4326", res.Buffer.CRS)
	require.NotNil(t, res.Buffer.Transform)
	x, y := res.Buffer.Transform.Apply(0, 0)
	assert.InDelta(t, -10, x, 1e-9)
	assert.InDelta(t, 50, y, 1e-9)
}

func TestDecodeResponseGrayImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	res, err := DecodeResponse("image/png", buf.Bytes())
	require.NoError(t, err)
	assert.False(t, res.Typed)
	assert.Empty(t, res.Diagnostic, "grayscale carries no color diagnostic")
	assert.Equal(t, float32(128), res.Buffer.At(0, 0))
}

func TestDecodeResponseColorImageDiagnostic(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 200   // R
		img.Pix[i+1] = 100 // G
		img.Pix[i+2] = 50  // B
		img.Pix[i+3] = 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	res, err := DecodeResponse("image/png", buf.Bytes())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Diagnostic)
	// 0.299*200 + 0.587*100 + 0.114*50 = 124.2
	assert.InDelta(t, 124.2, float64(res.Buffer.At(0, 0)), 0.5)
}

func TestDecodeResponseGarbage(t *testing.T) {
	_, err := DecodeResponse("text/html", []byte("<html>service error</html>"))
	require.Error(t, err)
}

func TestStrategiesOrder(t *testing.T) {
	tiffData := encodeTestTIFF(t, []int16{1}, 1, 1, -32768)
	s := Strategies("application/octet-stream", tiffData)
	require.Len(t, s, 2)
	assert.Equal(t, "typed-tiff", s[0].Name)

	s = Strategies("image/png", []byte{0x89, 'P', 'N', 'G'})
	require.Len(t, s, 1)
	assert.Equal(t, "generic-image", s[0].Name)
}

func TestLookupSource(t *testing.T) {
	src, ok := LookupSource("GEBCO 2025")
	require.True(t, ok)
	assert.Equal(t, ClassDepthGrid, src.Class)
	assert.True(t, src.NativeResolutionOnly())

	tid, ok := LookupSource("GEBCO 2025 TID")
	require.True(t, ok)
	assert.Equal(t, ClassClassification, tid.Class)

	_, ok = LookupSource("GEBCO 2014")
	assert.False(t, ok)

	custom := LegacySource("https://example.com/ImageServer")
	assert.Equal(t, ClassLegacy, custom.Class)
	assert.False(t, custom.NativeResolutionOnly())
}

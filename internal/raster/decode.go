package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	// Generic-image fallback decoders. The server answers format=tiff
	// requests with visualization PNGs or JPEGs when it cannot produce raw
	// values, and the x/image tiff decoder covers RGB-rendered TIFFs that
	// the typed parser rejects.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"bathy-export/internal/geo"
	"bathy-export/pkg/geotiff"
)

// Result is one decoded server response
type Result struct {
	Buffer *Buffer

	// Typed is true when the response was a typed raster container carrying
	// real measurement values rather than a rendered picture
	Typed bool

	// NativeType is the container's declared element type (typed responses only)
	NativeType geotiff.SampleType

	// DeclaredNodata is the per-response nodata, unapplied; policy decides
	// whether it masks anything
	DeclaredNodata *float64

	// Diagnostic is set when the decoded data may be a visualization rather
	// than raw values (e.g. an RGB image collapsed to luminance)
	Diagnostic string
}

// LooksLikeTIFF reports whether a response should be attempted as a typed
// raster, judged by declared content type or magic bytes
func LooksLikeTIFF(contentType string, data []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "tiff") {
		return true
	}
	return geotiff.SniffTIFF(data)
}

// Strategy is one way of turning response bytes into a buffer. Strategies are
// tried in order; each failure is recorded rather than handled in place.
type Strategy struct {
	Name   string
	Decode func(data []byte) (*Result, error)
}

// Strategies returns the ordered decoding attempts for a response: the typed
// raster parser first when the response looks like a TIFF, then the generic
// image decoder on the same bytes.
func Strategies(contentType string, data []byte) []Strategy {
	if LooksLikeTIFF(contentType, data) {
		return []Strategy{
			{Name: "typed-tiff", Decode: DecodeTypedTIFF},
			{Name: "generic-image", Decode: DecodeImage},
		}
	}
	return []Strategy{
		{Name: "generic-image", Decode: DecodeImage},
	}
}

// DecodeResponse runs the decoding strategies for a response in order and
// returns the first success. When every strategy fails the accumulated
// failures are joined into one error.
func DecodeResponse(contentType string, data []byte) (*Result, error) {
	var failures []error
	for _, s := range Strategies(contentType, data) {
		res, err := s.Decode(data)
		if err == nil {
			return res, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", s.Name, err))
	}
	return nil, errors.Join(failures...)
}

// DecodeTypedTIFF parses a typed single-band GeoTIFF response, preserving its
// native element type, declared nodata, affine transform and CRS
func DecodeTypedTIFF(data []byte) (*Result, error) {
	r, err := geotiff.Decode(data)
	if err != nil {
		return nil, err
	}

	buf := &Buffer{Width: r.Width, Height: r.Height, Data: r.Data}
	if r.Ref != nil {
		buf.Transform = &geo.Affine{
			A: r.Ref.PixelScaleX,
			C: r.Ref.OriginX,
			E: -r.Ref.PixelScaleY,
			F: r.Ref.OriginY,
		}
		if r.Ref.EPSG != 0 {
			buf.CRS = fmt.Sprintf("EPSG:%d", r.Ref.EPSG)
		}
	}

	return &Result{
		Buffer:         buf,
		Typed:          true,
		NativeType:     r.Type,
		DeclaredNodata: r.Nodata,
	}, nil
}

// DecodeImage decodes a response as a generic image. Color images are
// collapsed to a single luminance channel with a diagnostic, since a rendered
// picture carries no measurement values.
func DecodeImage(data []byte) (*Result, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding as image: %w", err)
	}

	bounds := img.Bounds()
	buf := &Buffer{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Data:   make([]float32, bounds.Dx()*bounds.Dy()),
	}

	res := &Result{Buffer: buf}

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < buf.Height; y++ {
			for x := 0; x < buf.Width; x++ {
				buf.Set(x, y, float32(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
	case *image.Gray16:
		for y := 0; y < buf.Height; y++ {
			for x := 0; x < buf.Width; x++ {
				buf.Set(x, y, float32(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
	default:
		res.Diagnostic = fmt.Sprintf("received %s image with color channels; using grayscale conversion - data may be a visualization rather than raw values", format)
		for y := 0; y < buf.Height; y++ {
			for x := 0; x < buf.Width; x++ {
				r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				// ITU-R 601 luma on the 16-bit channel values
				lum := (299*float64(r) + 587*float64(g) + 114*float64(b)) / 1000 / 257
				buf.Set(x, y, float32(lum))
			}
		}
	}

	return res, nil
}

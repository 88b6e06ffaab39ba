package bathymetry

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"bathy-export/internal/downloads"
	"bathy-export/internal/geo"
	"bathy-export/internal/raster"
	"bathy-export/pkg/geotiff"
)

// WriteGeoTIFF serializes a buffer to path in the representation the
// preservation rule demands. Integer rules round each value and clip it to
// the type's range; in-memory nodata cells are re-stamped with the rule's
// sentinel at this point and nowhere earlier.
func WriteGeoTIFF(buf *raster.Buffer, rule raster.Rule, path string) error {
	grid, err := gridForRule(buf, rule)
	if err != nil {
		return err
	}

	var ref *geotiff.GeoRef
	if buf.Transform != nil {
		r, err := geoRefFor(buf)
		if err != nil {
			return err
		}
		ref = r
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return downloads.WrapError(downloads.KindWriteFailure, "creating output directory", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return downloads.WrapError(downloads.KindWriteFailure, "creating output file", err)
	}

	nodata := rule.Nodata
	if err := geotiff.Encode(f, grid, ref, &nodata); err != nil {
		f.Close()
		os.Remove(path)
		return downloads.WrapError(downloads.KindWriteFailure, "encoding GeoTIFF", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return downloads.WrapError(downloads.KindWriteFailure, "closing output file", err)
	}
	return nil
}

func gridForRule(buf *raster.Buffer, rule raster.Rule) (*geotiff.Grid, error) {
	grid := &geotiff.Grid{
		Width:  buf.Width,
		Height: buf.Height,
		Type:   rule.Type,
	}

	switch rule.Type {
	case geotiff.SampleFloat32:
		sentinel := float32(rule.Nodata)
		out := make([]float32, len(buf.Data))
		for i, v := range buf.Data {
			if raster.IsNodata(v) {
				out[i] = sentinel
			} else {
				out[i] = v
			}
		}
		grid.Float32 = out

	case geotiff.SampleInt16:
		sentinel := int16(rule.Nodata)
		out := make([]int16, len(buf.Data))
		for i, v := range buf.Data {
			if raster.IsNodata(v) {
				out[i] = sentinel
			} else {
				out[i] = int16(clipRound(v, math.MinInt16, math.MaxInt16))
			}
		}
		grid.Int16 = out

	case geotiff.SampleInt8:
		sentinel := int8(rule.Nodata)
		out := make([]int8, len(buf.Data))
		for i, v := range buf.Data {
			if raster.IsNodata(v) {
				out[i] = sentinel
			} else {
				out[i] = int8(clipRound(v, math.MinInt8, math.MaxInt8))
			}
		}
		grid.Int8 = out

	default:
		return nil, downloads.NewError(downloads.KindWriteFailure,
			fmt.Sprintf("unsupported output sample type %s", rule.Type))
	}
	return grid, nil
}

// clipRound rounds half away from zero, then clips into [lo, hi]
func clipRound(v float32, lo, hi float64) float64 {
	r := math.Round(float64(v))
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}

func geoRefFor(buf *raster.Buffer) (*geotiff.GeoRef, error) {
	t := buf.Transform
	ref := &geotiff.GeoRef{
		OriginX:     t.C,
		OriginY:     t.F,
		PixelScaleX: t.A,
		PixelScaleY: -t.E,
	}
	if buf.CRS != "" {
		code, err := geo.EPSGCode(buf.CRS)
		if err != nil {
			return nil, downloads.WrapError(downloads.KindWriteFailure, "output CRS", err)
		}
		ref.EPSG = code
		ref.Geographic = code == 4326
	}
	return ref, nil
}

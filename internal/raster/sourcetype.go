package raster

import (
	"bathy-export/pkg/geotiff"
)

// Rule fixes, for one run, the numeric representation the pipeline preserves
// and the nodata convention for that representation. It is derived once from
// the request's data-source identity - never inferred from a response - so a
// server that declares an ambiguous per-response nodata cannot change how the
// run interprets values.
type Rule struct {
	Type        geotiff.SampleType
	Nodata      float64
	ZeroIsValid bool
}

// RuleForClass resolves the preservation rule for a source class:
//
//	classification (TID) grids  -> int8,    nodata -128,   zero is a real code
//	current-generation depth    -> int16,   nodata -32768, zero is a real depth
//	legacy / unrecognized depth -> float32, nodata -9999,  zero treated as nodata when declared
func RuleForClass(class SourceClass) Rule {
	switch class {
	case ClassClassification:
		return Rule{Type: geotiff.SampleInt8, Nodata: -128, ZeroIsValid: true}
	case ClassDepthGrid:
		return Rule{Type: geotiff.SampleInt16, Nodata: -32768, ZeroIsValid: true}
	default:
		return Rule{Type: geotiff.SampleFloat32, Nodata: -9999, ZeroIsValid: false}
	}
}

// MaskDeclaredNodata replaces cells matching a response's declared nodata with
// the in-memory sentinel. A declared nodata of exactly zero is ignored for
// zero-is-valid sources: the TID and current-generation grids use 0 as a
// legitimate value and some responses still declare it as nodata.
func (r Rule) MaskDeclaredNodata(buf *Buffer, declared *float64) {
	if declared == nil {
		return
	}
	if *declared == 0 && r.ZeroIsValid {
		return
	}
	nd := float32(*declared)
	nan := Nodata()
	for i, v := range buf.Data {
		if v == nd {
			buf.Data[i] = nan
		}
	}
}

package bathymetry

import (
	"fmt"
	"math"

	"github.com/ctessum/geom/proj"

	"bathy-export/internal/downloads"
	"bathy-export/internal/geo"
	"bathy-export/internal/raster"
)

// boundaryDensity is the number of samples per raster edge used to estimate
// the reprojected extent; curved projections bow the edges, so corners alone
// would under-cover.
const boundaryDensity = 21

// Reproject warps a georeferenced buffer into targetCRS by inverse mapping:
// the output extent is the source boundary transformed forward, its dimensions
// follow from that extent at square pixels sized to the coarser per-axis
// source spacing, and each output cell samples the source bilinearly at its
// back-projected center. Nodata cells never bleed into valid ones; a sample
// surrounded only by nodata stays nodata.
func Reproject(src *raster.Buffer, targetCRS string) (*raster.Buffer, error) {
	if src.Transform == nil || src.CRS == "" {
		return nil, downloads.NewError(downloads.KindUnexpectedShape,
			"source raster has no georeference; cannot reproject")
	}

	srcDef, err := geo.Proj4ForCRS(src.CRS)
	if err != nil {
		return nil, downloads.WrapError(downloads.KindUnexpectedShape, "source CRS", err)
	}
	dstDef, err := geo.Proj4ForCRS(targetCRS)
	if err != nil {
		return nil, downloads.WrapError(downloads.KindUnexpectedShape, "target CRS", err)
	}

	srcSR, err := proj.Parse(srcDef)
	if err != nil {
		return nil, fmt.Errorf("parsing source projection: %w", err)
	}
	dstSR, err := proj.Parse(dstDef)
	if err != nil {
		return nil, fmt.Errorf("parsing target projection: %w", err)
	}

	fwd, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, fmt.Errorf("building forward transform: %w", err)
	}
	inv, err := dstSR.NewTransform(srcSR)
	if err != nil {
		return nil, fmt.Errorf("building inverse transform: %w", err)
	}

	dstBBox, err := transformedBounds(src, fwd)
	if err != nil {
		return nil, err
	}

	width, height := reprojectedDims(dstBBox, src.Width, src.Height)
	dst := raster.NewBuffer(width, height)
	dstTransform := geo.AffineFromBounds(dstBBox, dst.Width, dst.Height)
	dst.Transform = &dstTransform
	dst.CRS = targetCRS

	srcInv, err := src.Transform.Invert()
	if err != nil {
		return nil, fmt.Errorf("source transform: %w", err)
	}

	for row := 0; row < dst.Height; row++ {
		for col := 0; col < dst.Width; col++ {
			wx, wy := dstTransform.Apply(float64(col)+0.5, float64(row)+0.5)
			sx, sy, err := inv(wx, wy)
			if err != nil {
				continue // outside the source projection's domain
			}
			pcol, prow := srcInv.Apply(sx, sy)
			dst.Set(col, row, sampleBilinear(src, pcol-0.5, prow-0.5))
		}
	}
	return dst, nil
}

// reprojectedDims sizes the output grid: square pixels at the coarser of the
// two per-axis spacings the target extent would have at the source's pixel
// counts, so the warp never oversamples the source along either axis.
func reprojectedDims(b geo.BoundingBox, srcWidth, srcHeight int) (int, int) {
	extentX := b.XMax - b.XMin
	extentY := b.YMax - b.YMin
	res := math.Max(extentX/float64(srcWidth), extentY/float64(srcHeight))

	width := int(math.Ceil(extentX / res))
	height := int(math.Ceil(extentY / res))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}

// transformedBounds projects the densified source boundary forward and
// returns its extent in the target CRS
func transformedBounds(src *raster.Buffer, fwd proj.Transformer) (geo.BoundingBox, error) {
	w, h := float64(src.Width), float64(src.Height)

	xmin, ymin := math.Inf(1), math.Inf(1)
	xmax, ymax := math.Inf(-1), math.Inf(-1)
	valid := false

	sample := func(col, row float64) {
		sx, sy := src.Transform.Apply(col, row)
		tx, ty, err := fwd(sx, sy)
		if err != nil {
			return
		}
		xmin = math.Min(xmin, tx)
		ymin = math.Min(ymin, ty)
		xmax = math.Max(xmax, tx)
		ymax = math.Max(ymax, ty)
		valid = true
	}

	for i := 0; i < boundaryDensity; i++ {
		f := float64(i) / float64(boundaryDensity-1)
		sample(f*w, 0) // north edge
		sample(f*w, h) // south edge
		sample(0, f*h) // west edge
		sample(w, f*h) // east edge
	}

	if !valid || xmin >= xmax || ymin >= ymax {
		return geo.BoundingBox{}, downloads.NewError(downloads.KindUnexpectedShape,
			"source extent does not map into the target CRS")
	}
	return geo.BoundingBox{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}, nil
}

// sampleBilinear interpolates src at fractional cell-center coordinates.
// Nodata neighbors are dropped and the remaining weights renormalized.
func sampleBilinear(src *raster.Buffer, x, y float64) float32 {
	if x < -0.5 || y < -0.5 || x > float64(src.Width)-0.5 || y > float64(src.Height)-0.5 {
		return raster.Nodata()
	}

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	var sum, weight float64
	for dy := 0; dy <= 1; dy++ {
		for dx := 0; dx <= 1; dx++ {
			col := x0 + dx
			row := y0 + dy
			if col < 0 || row < 0 || col >= src.Width || row >= src.Height {
				continue
			}
			v := src.At(col, row)
			if raster.IsNodata(v) {
				continue
			}
			wx := 1 - fx
			if dx == 1 {
				wx = fx
			}
			wy := 1 - fy
			if dy == 1 {
				wy = fy
			}
			w := wx * wy
			sum += float64(v) * w
			weight += w
		}
	}

	if weight == 0 {
		return raster.Nodata()
	}
	return float32(sum / weight)
}

package bathymetry

import (
	"fmt"

	"bathy-export/internal/downloads"
	"bathy-export/internal/raster"
)

// BlendTile merges a decoded fetch into the canvas over the tile's fetch
// rectangle. Where both the canvas and the incoming tile hold valid values
// the cell becomes their mean, so the overlap margins of neighboring fetches
// reconcile instead of one overwriting the other; where only one side is
// valid that value wins, and a cell with no valid value from either side
// stays nodata.
func BlendTile(canvas *raster.Buffer, tile *raster.Buffer, fetch PixelRect) error {
	if tile.Width != fetch.Width() || tile.Height != fetch.Height() {
		return downloads.NewError(downloads.KindUnexpectedShape,
			fmt.Sprintf("tile response is %dx%d, expected %dx%d",
				tile.Width, tile.Height, fetch.Width(), fetch.Height()))
	}
	if fetch.X0 < 0 || fetch.Y0 < 0 || fetch.X1 > canvas.Width || fetch.Y1 > canvas.Height {
		return downloads.NewError(downloads.KindUnexpectedShape,
			fmt.Sprintf("fetch rectangle %+v outside %dx%d canvas", fetch, canvas.Width, canvas.Height))
	}

	for ty := 0; ty < tile.Height; ty++ {
		cy := fetch.Y0 + ty
		for tx := 0; tx < tile.Width; tx++ {
			cx := fetch.X0 + tx
			incoming := tile.At(tx, ty)
			existing := canvas.At(cx, cy)

			switch {
			case raster.IsNodata(incoming):
				// keep existing, valid or not
			case raster.IsNodata(existing):
				canvas.Set(cx, cy, incoming)
			default:
				canvas.Set(cx, cy, (existing+incoming)/2)
			}
		}
	}
	return nil
}

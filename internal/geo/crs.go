package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// Proj4 definitions for the coordinate reference systems the downloader
// supports. Lookup is by "EPSG:<code>" identifier.
var proj4Defs = map[int]string{
	// Geographic WGS84
	4326: "+proj=longlat +datum=WGS84 +no_defs",
	// Web Mercator
	3857: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs",
}

// EPSGCode parses an "EPSG:nnnn" identifier
func EPSGCode(crs string) (int, error) {
	s := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(crs)), "EPSG:")
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid CRS identifier %q: %w", crs, err)
	}
	return code, nil
}

// Proj4ForCRS returns the proj4 definition for an "EPSG:nnnn" identifier
func Proj4ForCRS(crs string) (string, error) {
	code, err := EPSGCode(crs)
	if err != nil {
		return "", err
	}
	def, ok := proj4Defs[code]
	if !ok {
		return "", fmt.Errorf("unsupported CRS EPSG:%d", code)
	}
	return def, nil
}

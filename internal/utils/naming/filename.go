package naming

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayout puts the run time into filenames, second resolution
const timestampLayout = "20060102_150405"

// OutputFilename builds the name of one written GeoTIFF:
// {source}_{mode}_{timestamp}.tif, with the source name sanitized for
// filesystem use
func OutputFilename(source, mode string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s.tif",
		SanitizeName(source), SanitizeName(mode), t.Format(timestampLayout))
}

// RegionFilename builds a name carrying the region instead of a mode:
// {source}_{bbox}_{timestamp}.tif
func RegionFilename(source string, south, west, north, east float64, t time.Time) string {
	bboxStr := fmt.Sprintf("%s-%s_%s-%s",
		SanitizeCoordinate(south, true),
		SanitizeCoordinate(north, true),
		SanitizeCoordinate(west, false),
		SanitizeCoordinate(east, false))
	return fmt.Sprintf("%s_%s_%s.tif", SanitizeName(source), bboxStr, t.Format(timestampLayout))
}

// SanitizeName makes a source or mode name safe for filenames on every
// platform the outputs travel to
func SanitizeName(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(
		" ", "_",
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	return replacer.Replace(s)
}

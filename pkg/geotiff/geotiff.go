// Package geotiff reads and writes single-band georeferenced TIFF files with
// typed samples (float32, int16, int8), LZW compression and an explicit
// GDAL-style nodata tag.
package geotiff

// SampleType identifies the numeric representation of a band
type SampleType int

const (
	SampleFloat32 SampleType = iota
	SampleInt16
	SampleInt8
	SampleUint8
	SampleUint16
	SampleInt32
	SampleFloat64
)

// String returns the conventional name of the sample type
func (t SampleType) String() string {
	switch t {
	case SampleFloat32:
		return "float32"
	case SampleInt16:
		return "int16"
	case SampleInt8:
		return "int8"
	case SampleUint8:
		return "uint8"
	case SampleUint16:
		return "uint16"
	case SampleInt32:
		return "int32"
	case SampleFloat64:
		return "float64"
	}
	return "unknown"
}

// BitsPerSample returns the sample width in bits
func (t SampleType) BitsPerSample() int {
	switch t {
	case SampleInt8, SampleUint8:
		return 8
	case SampleInt16, SampleUint16:
		return 16
	case SampleFloat64:
		return 64
	default:
		return 32
	}
}

// TIFF tag IDs
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113
)

// TIFF field data types
const (
	dtByte   = 1
	dtASCII  = 2
	dtShort  = 3
	dtLong   = 4
	dtFloat  = 11
	dtDouble = 12
)

// TIFF compression codes
const (
	compressionNone    = 1
	compressionLZW     = 5
	compressionDeflate = 8
	compressionOldFlat = 32946
)

// TIFF sample format codes
const (
	formatUint  = 1
	formatInt   = 2
	formatFloat = 3
)

// GeoKey IDs inside the GeoKeyDirectory
const (
	keyGTModelType    = 1024
	keyGeographicType = 2048
	keyGeogAngularUnits = 2054
	keyProjectedCSType = 3072
	keyProjLinearUnits = 3076
)

// GeoRef carries the georeferencing of a raster: the world coordinates of the
// north-west corner, the per-axis pixel scale (both positive) and the CRS as
// an EPSG code. Geographic distinguishes geographic from projected systems.
type GeoRef struct {
	OriginX, OriginY float64
	PixelScaleX      float64
	PixelScaleY      float64
	EPSG             int
	Geographic       bool
}

// Grid holds one band of typed samples in row-major order, top row first.
// Exactly one of the sample slices is populated, matching Type.
type Grid struct {
	Width, Height int
	Type          SampleType
	Float32       []float32
	Int16         []int16
	Int8          []int8
}

// Raster is one decoded band with samples converted to float32 and the
// file's declared metadata preserved unapplied
type Raster struct {
	Width, Height int
	Type          SampleType
	Data          []float32
	Nodata        *float64
	Ref           *GeoRef
}

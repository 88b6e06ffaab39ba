package geotiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/hhrutter/lzw"
)

// SniffTIFF reports whether data starts with a TIFF magic signature
// ("II*\0" little endian or "MM\0*" big endian)
func SniffTIFF(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return bytes.Equal(data[:4], []byte{'I', 'I', 0x2A, 0x00}) ||
		bytes.Equal(data[:4], []byte{'M', 'M', 0x00, 0x2A})
}

// Decode parses a single-band GeoTIFF from raw bytes. Samples are converted
// to float32; the file's native sample type, declared nodata and
// georeferencing are preserved on the result without being applied.
// Uncompressed, LZW and DEFLATE strip- or tile-organized files are supported.
func Decode(data []byte) (*Raster, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("geotiff: data too short")
	}

	var bo binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("geotiff: invalid byte order marker")
	}
	if bo.Uint16(data[2:4]) != 42 {
		return nil, fmt.Errorf("geotiff: not a classic TIFF file")
	}

	return parseIFD(data, bo, bo.Uint32(data[4:8]))
}

type rawEntry struct {
	tag    uint16
	dtype  uint16
	count  uint32
	valOff uint32
}

type ifd struct {
	data    []byte
	bo      binary.ByteOrder
	entries []rawEntry
}

func (d *ifd) entry(tag uint16) *rawEntry {
	for i := range d.entries {
		if d.entries[i].tag == tag {
			return &d.entries[i]
		}
	}
	return nil
}

// uint32Value returns the first value of a SHORT or LONG tag
func (d *ifd) uint32Value(tag uint16) uint32 {
	e := d.entry(tag)
	if e == nil {
		return 0
	}
	arr := d.uint32Array(e)
	if len(arr) == 0 {
		return 0
	}
	return arr[0]
}

// uint32Array reads a SHORT or LONG array, inline or from the value area
func (d *ifd) uint32Array(e *rawEntry) []uint32 {
	if e == nil {
		return nil
	}
	n := int(e.count)
	sz := typeSize(e.dtype) * n
	var src []byte
	if sz <= 4 {
		buf := make([]byte, 4)
		d.bo.PutUint32(buf, e.valOff)
		src = buf
	} else {
		off := int(e.valOff)
		if off+sz > len(d.data) {
			return nil
		}
		src = d.data[off:]
	}
	arr := make([]uint32, n)
	for i := 0; i < n; i++ {
		if e.dtype == dtShort {
			arr[i] = uint32(d.bo.Uint16(src[i*2:]))
		} else {
			arr[i] = d.bo.Uint32(src[i*4:])
		}
	}
	return arr
}

func (d *ifd) float64Array(e *rawEntry) []float64 {
	if e == nil {
		return nil
	}
	n := int(e.count)
	off := int(e.valOff)
	if off+n*8 > len(d.data) {
		return nil
	}
	arr := make([]float64, n)
	for i := 0; i < n; i++ {
		arr[i] = math.Float64frombits(d.bo.Uint64(d.data[off+i*8:]))
	}
	return arr
}

func (d *ifd) asciiValue(e *rawEntry) string {
	if e == nil {
		return ""
	}
	n := int(e.count)
	var src []byte
	if n <= 4 {
		buf := make([]byte, 4)
		d.bo.PutUint32(buf, e.valOff)
		src = buf[:n]
	} else {
		off := int(e.valOff)
		if off+n > len(d.data) {
			return ""
		}
		src = d.data[off : off+n]
	}
	return strings.TrimRight(string(src), "\x00")
}

func parseIFD(data []byte, bo binary.ByteOrder, offset uint32) (*Raster, error) {
	if int(offset)+2 > len(data) {
		return nil, fmt.Errorf("geotiff: IFD offset out of range")
	}

	numEntries := int(bo.Uint16(data[offset:]))
	d := &ifd{data: data, bo: bo, entries: make([]rawEntry, numEntries)}
	pos := int(offset) + 2
	for i := 0; i < numEntries; i++ {
		if pos+12 > len(data) {
			return nil, fmt.Errorf("geotiff: truncated IFD entry")
		}
		d.entries[i] = rawEntry{
			tag:    bo.Uint16(data[pos:]),
			dtype:  bo.Uint16(data[pos+2:]),
			count:  bo.Uint32(data[pos+4:]),
			valOff: bo.Uint32(data[pos+8:]),
		}
		pos += 12
	}

	width := int(d.uint32Value(tagImageWidth))
	height := int(d.uint32Value(tagImageLength))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("geotiff: zero image dimensions")
	}
	samplesPerPixel := int(d.uint32Value(tagSamplesPerPixel))
	if samplesPerPixel == 0 {
		samplesPerPixel = 1
	}
	if samplesPerPixel != 1 {
		return nil, fmt.Errorf("geotiff: expected single band, got %d samples per pixel", samplesPerPixel)
	}

	bitsPerSample := int(d.uint32Value(tagBitsPerSample))
	if bitsPerSample == 0 {
		bitsPerSample = 1
	}
	sampleFormat := d.uint32Value(tagSampleFormat)
	if sampleFormat == 0 {
		sampleFormat = formatUint
	}
	stype, err := sampleType(sampleFormat, bitsPerSample)
	if err != nil {
		return nil, err
	}

	compression := d.uint32Value(tagCompression)
	if compression == 0 {
		compression = compressionNone
	}
	predictor := d.uint32Value(tagPredictor)
	if predictor == 0 {
		predictor = 1
	}
	if predictor == 2 && (stype == SampleFloat32 || stype == SampleFloat64) {
		return nil, fmt.Errorf("geotiff: horizontal differencing predictor unsupported for float samples")
	}
	if predictor > 2 {
		return nil, fmt.Errorf("geotiff: unsupported predictor %d", predictor)
	}

	pixels := make([]float32, width*height)
	bytesPerSample := bitsPerSample / 8

	if d.entry(tagTileWidth) != nil {
		tw := int(d.uint32Value(tagTileWidth))
		th := int(d.uint32Value(tagTileLength))
		offsets := d.uint32Array(d.entry(tagTileOffsets))
		byteCounts := d.uint32Array(d.entry(tagTileByteCounts))
		if tw <= 0 || th <= 0 || len(offsets) == 0 {
			return nil, fmt.Errorf("geotiff: malformed tile layout")
		}
		tilesX := (width + tw - 1) / tw
		tilesY := (height + th - 1) / th
		for ty := 0; ty < tilesY; ty++ {
			for tx := 0; tx < tilesX; tx++ {
				idx := ty*tilesX + tx
				if idx >= len(offsets) || idx >= len(byteCounts) {
					return nil, fmt.Errorf("geotiff: missing tile %d", idx)
				}
				raw, err := decompressChunk(data, offsets[idx], byteCounts[idx], compression)
				if err != nil {
					return nil, fmt.Errorf("geotiff: tile (%d,%d): %w", tx, ty, err)
				}
				if predictor == 2 {
					undoPredictor(raw, tw, bytesPerSample, bo)
				}
				for row := 0; row < th; row++ {
					y := ty*th + row
					if y >= height {
						break
					}
					for col := 0; col < tw; col++ {
						x := tx*tw + col
						if x >= width {
							continue
						}
						i := (row*tw + col) * bytesPerSample
						if i+bytesPerSample > len(raw) {
							continue
						}
						pixels[y*width+x] = sampleToFloat32(raw[i:], stype, bo)
					}
				}
			}
		}
	} else {
		rowsPerStrip := int(d.uint32Value(tagRowsPerStrip))
		if rowsPerStrip == 0 {
			rowsPerStrip = height
		}
		offsets := d.uint32Array(d.entry(tagStripOffsets))
		byteCounts := d.uint32Array(d.entry(tagStripByteCounts))
		if len(offsets) == 0 {
			return nil, fmt.Errorf("geotiff: no strip offsets")
		}
		y := 0
		for i, off := range offsets {
			var bc uint32
			if i < len(byteCounts) {
				bc = byteCounts[i]
			}
			raw, err := decompressChunk(data, off, bc, compression)
			if err != nil {
				return nil, fmt.Errorf("geotiff: strip %d: %w", i, err)
			}
			if predictor == 2 {
				undoPredictor(raw, width, bytesPerSample, bo)
			}
			rows := rowsPerStrip
			if y+rows > height {
				rows = height - y
			}
			n := rows * width
			if len(raw) < n*bytesPerSample {
				n = len(raw) / bytesPerSample
			}
			for j := 0; j < n; j++ {
				pixels[y*width+j] = sampleToFloat32(raw[j*bytesPerSample:], stype, bo)
			}
			y += rows
		}
	}

	r := &Raster{
		Width:  width,
		Height: height,
		Type:   stype,
		Data:   pixels,
	}

	// Declared nodata: GDAL null-terminated decimal string
	if s := d.asciiValue(d.entry(tagGDALNoData)); s != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			r.Nodata = &v
		}
	}

	// Georeferencing from pixel scale + tiepoint
	scales := d.float64Array(d.entry(tagModelPixelScale))
	tiepoints := d.float64Array(d.entry(tagModelTiepoint))
	if len(scales) >= 2 && len(tiepoints) >= 6 {
		ref := &GeoRef{
			PixelScaleX: scales[0],
			PixelScaleY: scales[1],
			OriginX:     tiepoints[3] - tiepoints[0]*scales[0],
			OriginY:     tiepoints[4] + tiepoints[1]*scales[1],
		}
		// CRS from the GeoKeyDirectory
		keys := d.uint32Array(d.entry(tagGeoKeyDirectory))
		if len(keys) > 4 {
			nKeys := int(keys[3])
			for k := 0; k < nKeys && 4+k*4+3 < len(keys); k++ {
				keyID := keys[4+k*4]
				loc := keys[4+k*4+1]
				val := keys[4+k*4+3]
				switch {
				case keyID == keyProjectedCSType && loc == 0:
					ref.EPSG = int(val)
					ref.Geographic = false
				case keyID == keyGeographicType && loc == 0 && ref.EPSG == 0:
					ref.EPSG = int(val)
					ref.Geographic = true
				}
			}
		}
		r.Ref = ref
	}

	return r, nil
}

func sampleType(format uint32, bits int) (SampleType, error) {
	switch format {
	case formatUint:
		switch bits {
		case 8:
			return SampleUint8, nil
		case 16:
			return SampleUint16, nil
		}
	case formatInt:
		switch bits {
		case 8:
			return SampleInt8, nil
		case 16:
			return SampleInt16, nil
		case 32:
			return SampleInt32, nil
		}
	case formatFloat:
		switch bits {
		case 32:
			return SampleFloat32, nil
		case 64:
			return SampleFloat64, nil
		}
	}
	return 0, fmt.Errorf("geotiff: unsupported sample format %d with %d bits", format, bits)
}

func sampleToFloat32(b []byte, t SampleType, bo binary.ByteOrder) float32 {
	switch t {
	case SampleUint8:
		return float32(b[0])
	case SampleInt8:
		return float32(int8(b[0]))
	case SampleUint16:
		return float32(bo.Uint16(b))
	case SampleInt16:
		return float32(int16(bo.Uint16(b)))
	case SampleInt32:
		return float32(int32(bo.Uint32(b)))
	case SampleFloat64:
		return float32(math.Float64frombits(bo.Uint64(b)))
	default:
		return math.Float32frombits(bo.Uint32(b))
	}
}

func typeSize(dtype uint16) int {
	switch dtype {
	case dtByte, dtASCII:
		return 1
	case dtShort:
		return 2
	case dtLong, dtFloat:
		return 4
	case dtDouble:
		return 8
	default:
		return 1
	}
}

func decompressChunk(data []byte, offset, byteCount, compression uint32) ([]byte, error) {
	off := int(offset)
	bc := int(byteCount)
	if off < 0 || bc < 0 || off+bc > len(data) {
		return nil, fmt.Errorf("chunk out of bounds (off=%d bc=%d len=%d)", off, bc, len(data))
	}
	chunk := data[off : off+bc]

	switch compression {
	case compressionNone:
		return chunk, nil
	case compressionLZW:
		r := lzw.NewReader(bytes.NewReader(chunk), true)
		defer r.Close()
		return io.ReadAll(r)
	case compressionDeflate, compressionOldFlat:
		r, err := zlib.NewReader(bytes.NewReader(chunk))
		if err != nil {
			return nil, fmt.Errorf("zlib init: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unsupported compression type %d", compression)
	}
}

// undoPredictor reverses TIFF horizontal differencing in place
func undoPredictor(raw []byte, rowWidth, bytesPerSample int, bo binary.ByteOrder) {
	rowBytes := rowWidth * bytesPerSample
	for rowStart := 0; rowStart+rowBytes <= len(raw); rowStart += rowBytes {
		row := raw[rowStart : rowStart+rowBytes]
		switch bytesPerSample {
		case 1:
			for i := 1; i < len(row); i++ {
				row[i] += row[i-1]
			}
		case 2:
			for i := 1; i < rowWidth; i++ {
				v := bo.Uint16(row[i*2:]) + bo.Uint16(row[(i-1)*2:])
				bo.PutUint16(row[i*2:], v)
			}
		case 4:
			for i := 1; i < rowWidth; i++ {
				v := bo.Uint32(row[i*4:]) + bo.Uint32(row[(i-1)*4:])
				bo.PutUint32(row[i*4:], v)
			}
		}
	}
}

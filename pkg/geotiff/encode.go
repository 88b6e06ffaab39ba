package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/hhrutter/lzw"
)

var enc = binary.LittleEndian

type ifdEntry struct {
	tag      uint16
	datatype uint16
	count    uint32
	data     []byte
}

type byTag []ifdEntry

func (d byTag) Len() int           { return len(d) }
func (d byTag) Less(i, j int) bool { return d[i].tag < d[j].tag }
func (d byTag) Swap(i, j int)      { d[i], d[j] = d[j], d[i] }

// Target size of one uncompressed strip. The exact value only affects file
// layout, not what readers see.
const stripTargetBytes = 8192

// Encode writes g to w as a single-band LZW-compressed GeoTIFF. ref supplies
// the affine georeferencing and CRS keys; nodata, when non-nil, is written as
// the GDAL nodata tag. Sample values are written verbatim - the caller is
// responsible for stamping nodata cells before encoding.
func Encode(w io.Writer, g *Grid, ref *GeoRef, nodata *float64) error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("geotiff: invalid dimensions %dx%d", g.Width, g.Height)
	}

	bytesPerSample := g.Type.BitsPerSample() / 8
	sampleFormat, err := sampleFormatCode(g.Type)
	if err != nil {
		return err
	}

	// Serialize samples row-major little-endian
	raw, err := encodeSamples(g)
	if err != nil {
		return err
	}

	// Split into strips and LZW-compress each independently
	bytesPerRow := g.Width * bytesPerSample
	rowsPerStrip := stripTargetBytes / bytesPerRow
	if rowsPerStrip < 1 {
		rowsPerStrip = 1
	}
	if rowsPerStrip > g.Height {
		rowsPerStrip = g.Height
	}

	var strips [][]byte
	for y := 0; y < g.Height; y += rowsPerStrip {
		rows := rowsPerStrip
		if y+rows > g.Height {
			rows = g.Height - y
		}
		chunk := raw[y*bytesPerRow : (y+rows)*bytesPerRow]
		compressed, err := lzwCompress(chunk)
		if err != nil {
			return fmt.Errorf("geotiff: compressing strip at row %d: %w", y, err)
		}
		strips = append(strips, compressed)
	}

	var entries []ifdEntry
	addEntry := func(tag uint16, datatype uint16, count uint32, data []byte) {
		entries = append(entries, ifdEntry{tag, datatype, count, data})
	}

	addEntry(tagImageWidth, dtLong, 1, enc32(uint32(g.Width)))
	addEntry(tagImageLength, dtLong, 1, enc32(uint32(g.Height)))
	addEntry(tagBitsPerSample, dtShort, 1, enc16(uint16(g.Type.BitsPerSample())))
	addEntry(tagCompression, dtShort, 1, enc16(compressionLZW))
	addEntry(tagPhotometric, dtShort, 1, enc16(1)) // BlackIsZero
	addEntry(tagSamplesPerPixel, dtShort, 1, enc16(1))
	addEntry(tagRowsPerStrip, dtLong, 1, enc32(uint32(rowsPerStrip)))
	addEntry(tagSampleFormat, dtShort, 1, enc16(sampleFormat))

	if ref != nil {
		addEntry(tagModelPixelScale, dtDouble, 3, encDoubles([]float64{ref.PixelScaleX, ref.PixelScaleY, 0}))
		addEntry(tagModelTiepoint, dtDouble, 6, encDoubles([]float64{0, 0, 0, ref.OriginX, ref.OriginY, 0}))
		if ref.EPSG != 0 {
			keys := geoKeys(ref)
			addEntry(tagGeoKeyDirectory, dtShort, uint32(len(keys)), enc16s(keys))
		}
	}

	if nodata != nil {
		// GDAL stores nodata as a null-terminated decimal string
		s := strconv.FormatFloat(*nodata, 'f', -1, 64)
		b := append([]byte(s), 0)
		addEntry(tagGDALNoData, dtASCII, uint32(len(b)), b)
	}

	// StripOffsets and StripByteCounts are filled once the layout is known
	addEntry(tagStripOffsets, dtLong, uint32(len(strips)), make([]byte, 4*len(strips)))
	addEntry(tagStripByteCounts, dtLong, uint32(len(strips)), make([]byte, 4*len(strips)))

	sort.Sort(byTag(entries))

	// Layout: header (8) -> IFD -> value data area -> strip data
	ifdSize := 2 + 12*len(entries) + 4
	valueDataOffset := 8 + ifdSize
	valueDataLen := 0
	for _, e := range entries {
		if len(e.data) > 4 {
			valueDataLen += len(e.data)
		}
	}
	stripDataOffset := uint32(valueDataOffset + valueDataLen)

	// Now that the strip data position is fixed, fill in the offset arrays
	stripOffsets := make([]byte, 4*len(strips))
	stripCounts := make([]byte, 4*len(strips))
	off := stripDataOffset
	for i, s := range strips {
		enc.PutUint32(stripOffsets[i*4:], off)
		enc.PutUint32(stripCounts[i*4:], uint32(len(s)))
		off += uint32(len(s))
	}
	for i := range entries {
		switch entries[i].tag {
		case tagStripOffsets:
			entries[i].data = stripOffsets
		case tagStripByteCounts:
			entries[i].data = stripCounts
		}
	}

	// Header: little endian, classic TIFF, first IFD at offset 8
	if _, err := w.Write([]byte{'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00}); err != nil {
		return err
	}

	// IFD entry table; values wider than 4 bytes go to the value data area
	var largeDataBuf bytes.Buffer
	if err := binary.Write(w, enc, uint16(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := binary.Write(w, enc, e.tag); err != nil {
			return err
		}
		if err := binary.Write(w, enc, e.datatype); err != nil {
			return err
		}
		if err := binary.Write(w, enc, e.count); err != nil {
			return err
		}
		var val [4]byte
		if len(e.data) > 4 {
			enc.PutUint32(val[:], uint32(valueDataOffset+largeDataBuf.Len()))
			largeDataBuf.Write(e.data)
		} else {
			copy(val[:], e.data)
		}
		if _, err := w.Write(val[:]); err != nil {
			return err
		}
	}
	// Next IFD offset: none
	if err := binary.Write(w, enc, uint32(0)); err != nil {
		return err
	}

	if _, err := largeDataBuf.WriteTo(w); err != nil {
		return err
	}

	for _, s := range strips {
		if _, err := w.Write(s); err != nil {
			return err
		}
	}
	return nil
}

// geoKeys builds the GeoKeyDirectory for ref
func geoKeys(ref *GeoRef) []uint16 {
	if ref.Geographic {
		return []uint16{
			1, 1, 0, 2, // version 1.1, 2 keys
			keyGTModelType, 0, 1, 2, // ModelTypeGeographic
			keyGeographicType, 0, 1, uint16(ref.EPSG),
		}
	}
	return []uint16{
		1, 1, 0, 3,
		keyGTModelType, 0, 1, 1, // ModelTypeProjected
		keyProjectedCSType, 0, 1, uint16(ref.EPSG),
		keyProjLinearUnits, 0, 1, 9001, // metre
	}
}

func sampleFormatCode(t SampleType) (uint16, error) {
	switch t {
	case SampleFloat32:
		return formatFloat, nil
	case SampleInt16, SampleInt8:
		return formatInt, nil
	default:
		return 0, fmt.Errorf("geotiff: unsupported sample type for encoding: %s", t)
	}
}

func encodeSamples(g *Grid) ([]byte, error) {
	n := g.Width * g.Height
	switch g.Type {
	case SampleFloat32:
		if len(g.Float32) != n {
			return nil, fmt.Errorf("geotiff: float32 sample count %d does not match %dx%d", len(g.Float32), g.Width, g.Height)
		}
		b := make([]byte, 4*n)
		for i, v := range g.Float32 {
			enc.PutUint32(b[i*4:], math.Float32bits(v))
		}
		return b, nil
	case SampleInt16:
		if len(g.Int16) != n {
			return nil, fmt.Errorf("geotiff: int16 sample count %d does not match %dx%d", len(g.Int16), g.Width, g.Height)
		}
		b := make([]byte, 2*n)
		for i, v := range g.Int16 {
			enc.PutUint16(b[i*2:], uint16(v))
		}
		return b, nil
	case SampleInt8:
		if len(g.Int8) != n {
			return nil, fmt.Errorf("geotiff: int8 sample count %d does not match %dx%d", len(g.Int8), g.Width, g.Height)
		}
		b := make([]byte, n)
		for i, v := range g.Int8 {
			b[i] = byte(v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("geotiff: unsupported sample type for encoding: %s", g.Type)
	}
}

// lzwCompress applies TIFF-flavored LZW (MSB-first with early code change)
func lzwCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	lw := lzw.NewWriter(&buf, true)
	if _, err := lw.Write(data); err != nil {
		return nil, err
	}
	if err := lw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Helpers shared with the decoder

func enc16(v uint16) []byte {
	b := make([]byte, 2)
	enc.PutUint16(b, v)
	return b
}

func enc32(v uint32) []byte {
	b := make([]byte, 4)
	enc.PutUint32(b, v)
	return b
}

func enc16s(vs []uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		enc.PutUint16(b[i*2:], v)
	}
	return b
}

func encDoubles(vs []float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		enc.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

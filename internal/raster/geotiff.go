package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// GeoTIFF tags.
const (
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoDoubleParams     = 34736
	tagGeoASCIIParams      = 34737
)

// Baseline TIFF tags written by Encode.
const (
	tagImageWidth                = 256
	tagImageLength               = 257
	tagBitsPerSample             = 258
	tagCompression               = 259
	tagPhotometricInterpretation = 262
	tagStripOffsets              = 273
	tagSamplesPerPixel           = 277
	tagRowsPerStrip              = 278
	tagStripByteCounts           = 279
	tagPlanarConfiguration       = 284
	tagSampleFormat              = 339
)

// TIFF field types.
const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSByte     = 6
	typeUndefined = 7
	typeSShort    = 8
	typeSLong     = 9
	typeSRational = 10
	typeFloat     = 11
	typeDouble    = 12
)

const (
	geoKeyRasterType   = 1025
	rasterPixelIsPoint = 2

	compressionDeflate = 8
	photometricGray    = 1
	photometricRGB     = 2
)

// GeoKeys is the raw GeoTIFF key directory with its parameter tags. It is
// carried through unchanged so the output keeps the input's CRS definition.
type GeoKeys struct {
	Directory []uint16
	Doubles   []float64
	ASCII     string
}

func (g GeoKeys) clone() GeoKeys {
	return GeoKeys{
		Directory: append([]uint16(nil), g.Directory...),
		Doubles:   append([]float64(nil), g.Doubles...),
		ASCII:     g.ASCII,
	}
}

// key returns the inline SHORT value of a GeoKey.
func (g *GeoKeys) key(id uint16) (uint16, bool) {
	if g == nil || len(g.Directory) < 4 {
		return 0, false
	}
	n := int(g.Directory[3])
	for i := 0; i < n; i++ {
		e := 4 + 4*i
		if e+3 >= len(g.Directory) {
			break
		}
		if g.Directory[e] == id && g.Directory[e+1] == 0 {
			return g.Directory[e+3], true
		}
	}
	return 0, false
}

func (g *GeoKeys) pixelIsPoint() bool {
	v, ok := g.key(geoKeyRasterType)
	return ok && v == rasterPixelIsPoint
}

type tiffField struct {
	typ   uint16
	count uint32
	raw   []byte
}

type tiffDir struct {
	order  binary.ByteOrder
	fields map[uint16]tiffField
}

func typeSize(typ uint16) uint64 {
	switch typ {
	case typeByte, typeASCII, typeSByte, typeUndefined:
		return 1
	case typeShort, typeSShort:
		return 2
	case typeLong, typeSLong, typeFloat:
		return 4
	case typeRational, typeSRational, typeDouble:
		return 8
	}
	return 0
}

// readTIFFDir parses the first IFD of a classic TIFF file.
func readTIFFDir(data []byte) (*tiffDir, error) {
	if len(data) < 8 {
		return nil, errors.New("tiff: file too short")
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, errors.New("tiff: invalid byte order mark")
	}
	if order.Uint16(data[2:4]) != 42 {
		return nil, errors.New("tiff: not a classic TIFF file")
	}

	off := uint64(order.Uint32(data[4:8]))
	if off+2 > uint64(len(data)) {
		return nil, errors.New("tiff: IFD offset out of range")
	}
	n := uint64(order.Uint16(data[off : off+2]))
	if off+2+12*n > uint64(len(data)) {
		return nil, errors.New("tiff: IFD truncated")
	}

	dir := &tiffDir{order: order, fields: make(map[uint16]tiffField, n)}
	for i := uint64(0); i < n; i++ {
		e := data[off+2+12*i : off+2+12*(i+1)]
		tag := order.Uint16(e[0:2])
		typ := order.Uint16(e[2:4])
		count := order.Uint32(e[4:8])

		size := typeSize(typ) * uint64(count)
		if size == 0 {
			continue
		}
		var raw []byte
		if size <= 4 {
			raw = e[8 : 8+size]
		} else {
			at := uint64(order.Uint32(e[8:12]))
			if at+size > uint64(len(data)) {
				return nil, fmt.Errorf("tiff: tag %d value out of range", tag)
			}
			raw = data[at : at+size]
		}
		dir.fields[tag] = tiffField{typ: typ, count: count, raw: raw}
	}
	return dir, nil
}

func (d *tiffDir) doubles(tag uint16) []float64 {
	f, ok := d.fields[tag]
	if !ok || f.typ != typeDouble {
		return nil
	}
	out := make([]float64, f.count)
	for i := range out {
		out[i] = math.Float64frombits(d.order.Uint64(f.raw[8*i:]))
	}
	return out
}

func (d *tiffDir) shorts(tag uint16) []uint16 {
	f, ok := d.fields[tag]
	if !ok || f.typ != typeShort {
		return nil
	}
	out := make([]uint16, f.count)
	for i := range out {
		out[i] = d.order.Uint16(f.raw[2*i:])
	}
	return out
}

func (d *tiffDir) ascii(tag uint16) string {
	f, ok := d.fields[tag]
	if !ok || f.typ != typeASCII {
		return ""
	}
	return string(f.raw)
}

// readGeoref extracts the pixel-to-model transform and GeoKeys from the
// GeoTIFF tags of data. ok is false when the file carries no transform.
func readGeoref(data []byte) (t Affine, keys *GeoKeys, ok bool, err error) {
	dir, err := readTIFFDir(data)
	if err != nil {
		return Affine{}, nil, false, err
	}

	if d := dir.shorts(tagGeoKeyDirectory); len(d) >= 4 {
		keys = &GeoKeys{
			Directory: d,
			Doubles:   dir.doubles(tagGeoDoubleParams),
			ASCII:     dir.ascii(tagGeoASCIIParams),
		}
	}

	if m := dir.doubles(tagModelTransformation); len(m) >= 16 {
		t = Affine{A: m[0], B: m[1], C: m[3], D: m[4], E: m[5], F: m[7]}
		ok = true
	} else {
		scale := dir.doubles(tagModelPixelScale)
		tie := dir.doubles(tagModelTiepoint)
		if len(scale) >= 2 && len(tie) >= 6 {
			i, j, x, y := tie[0], tie[1], tie[3], tie[4]
			t = Affine{
				A: scale[0], C: x - i*scale[0],
				E: -scale[1], F: y + j*scale[1],
			}
			ok = true
		}
	}

	if ok && keys.pixelIsPoint() {
		t.C -= 0.5 * (t.A + t.B)
		t.F -= 0.5 * (t.D + t.E)
	}
	return t, keys, ok, nil
}

// ParseWorldFile parses an ESRI world file (.tfw, .wld). The file's six
// values place the centre of the top-left pixel; the returned transform is
// anchored at its outer corner.
func ParseWorldFile(data []byte) (Affine, error) {
	fields := strings.Fields(string(data))
	if len(fields) < 6 {
		return Affine{}, fmt.Errorf("world file: want 6 values, got %d", len(fields))
	}
	var v [6]float64
	for i := range v {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return Affine{}, errors.Wrapf(err, "world file: value %d", i+1)
		}
		v[i] = f
	}
	a, d, b, e, cx, cy := v[0], v[1], v[2], v[3], v[4], v[5]
	return Affine{
		A: a, B: b, C: cx - 0.5*(a+b),
		D: d, E: e, F: cy - 0.5*(d+e),
	}, nil
}

// WorldFileCandidates lists sidecar paths that may hold the world file for
// a raster at path, in lookup order.
func WorldFileCandidates(path string) []string {
	base := path
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexByte(path, '/') {
		base = path[:i]
	}
	return []string{base + ".tfw", path + "w", base + ".wld"}
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
}

func shortEntry(tag uint16, vals ...uint16) ifdEntry {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return ifdEntry{tag: tag, typ: typeShort, count: uint32(len(vals)), value: b}
}

func longEntry(tag uint16, v uint32) ifdEntry {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return ifdEntry{tag: tag, typ: typeLong, count: 1, value: b}
}

func doubleEntry(tag uint16, vals ...float64) ifdEntry {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return ifdEntry{tag: tag, typ: typeDouble, count: uint32(len(vals)), value: b}
}

func asciiEntry(tag uint16, s string) ifdEntry {
	if !strings.HasSuffix(s, "\x00") {
		s += "\x00"
	}
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(s)), value: []byte(s)}
}

// Encode writes r as a little-endian, single-strip, Deflate-compressed TIFF.
// Width, height, band count and bit depth match r exactly. The transform is
// written as GeoTIFF tags, together with r.GeoKeys when present.
func Encode(w io.Writer, r *Raster) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Channels != 1 && r.Channels != 3 {
		return fmt.Errorf("tiff: cannot encode %d bands", r.Channels)
	}

	pixels, err := deflatePixels(r)
	if err != nil {
		return err
	}

	bits := make([]uint16, r.Channels)
	formats := make([]uint16, r.Channels)
	for i := range bits {
		bits[i] = uint16(r.BitDepth)
		formats[i] = 1
	}
	photometric := uint16(photometricGray)
	if r.Channels == 3 {
		photometric = photometricRGB
	}

	const header = 8
	dataEnd := header + len(pixels)

	entries := []ifdEntry{
		longEntry(tagImageWidth, uint32(r.Width)),
		longEntry(tagImageLength, uint32(r.Height)),
		shortEntry(tagBitsPerSample, bits...),
		shortEntry(tagCompression, compressionDeflate),
		shortEntry(tagPhotometricInterpretation, photometric),
		longEntry(tagStripOffsets, header),
		shortEntry(tagSamplesPerPixel, uint16(r.Channels)),
		longEntry(tagRowsPerStrip, uint32(r.Height)),
		longEntry(tagStripByteCounts, uint32(len(pixels))),
		shortEntry(tagPlanarConfiguration, 1),
		shortEntry(tagSampleFormat, formats...),
	}
	entries = append(entries, georefEntries(r.Transform, r.GeoKeys)...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	// Out-of-line values follow the pixel data, then the IFD.
	var extra bytes.Buffer
	extraStart := dataEnd + dataEnd%2
	offsets := make([]uint32, len(entries))
	for i, e := range entries {
		if len(e.value) <= 4 {
			continue
		}
		offsets[i] = uint32(extraStart + extra.Len())
		extra.Write(e.value)
		if extra.Len()%2 == 1 {
			extra.WriteByte(0)
		}
	}
	ifdOffset := extraStart + extra.Len()

	var buf bytes.Buffer
	buf.Grow(ifdOffset + 2 + 12*len(entries) + 4)
	buf.WriteString("II")
	binary.Write(&buf, binary.LittleEndian, uint16(42))
	binary.Write(&buf, binary.LittleEndian, uint32(ifdOffset))
	buf.Write(pixels)
	if dataEnd%2 == 1 {
		buf.WriteByte(0)
	}
	buf.Write(extra.Bytes())

	binary.Write(&buf, binary.LittleEndian, uint16(len(entries)))
	for i, e := range entries {
		binary.Write(&buf, binary.LittleEndian, e.tag)
		binary.Write(&buf, binary.LittleEndian, e.typ)
		binary.Write(&buf, binary.LittleEndian, e.count)
		if len(e.value) <= 4 {
			var inline [4]byte
			copy(inline[:], e.value)
			buf.Write(inline[:])
		} else {
			binary.Write(&buf, binary.LittleEndian, offsets[i])
		}
	}
	binary.Write(&buf, binary.LittleEndian, uint32(0))

	_, err = w.Write(buf.Bytes())
	return errors.Wrap(err, "tiff: write")
}

func georefEntries(t Affine, keys *GeoKeys) []ifdEntry {
	var out []ifdEntry

	anchor := t
	if keys.pixelIsPoint() {
		anchor.C += 0.5 * (t.A + t.B)
		anchor.F += 0.5 * (t.D + t.E)
	}
	if t.B == 0 && t.D == 0 {
		out = append(out,
			doubleEntry(tagModelPixelScale, t.A, -t.E, 0),
			doubleEntry(tagModelTiepoint, 0, 0, 0, anchor.C, anchor.F, 0),
		)
	} else {
		out = append(out, doubleEntry(tagModelTransformation,
			t.A, t.B, 0, anchor.C,
			t.D, t.E, 0, anchor.F,
			0, 0, 0, 0,
			0, 0, 0, 1,
		))
	}

	if keys != nil {
		out = append(out, shortEntry(tagGeoKeyDirectory, keys.Directory...))
		if len(keys.Doubles) > 0 {
			out = append(out, doubleEntry(tagGeoDoubleParams, keys.Doubles...))
		}
		if keys.ASCII != "" {
			out = append(out, asciiEntry(tagGeoASCIIParams, keys.ASCII))
		}
	}
	return out
}

// deflatePixels interleaves the bands (chunky order) and compresses them.
func deflatePixels(r *Raster) ([]byte, error) {
	bytesPerSample := r.BitDepth / 8
	row := make([]byte, r.Width*r.Channels*bytesPerSample)

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			i := y*r.Width + x
			for c := 0; c < r.Channels; c++ {
				o := (x*r.Channels + c) * bytesPerSample
				v := r.Bands[c][i]
				if bytesPerSample == 1 {
					row[o] = uint8(v)
				} else {
					binary.LittleEndian.PutUint16(row[o:], v)
				}
			}
		}
		if _, err := zw.Write(row); err != nil {
			return nil, errors.Wrap(err, "tiff: compress")
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "tiff: compress")
	}
	return buf.Bytes(), nil
}

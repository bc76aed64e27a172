package volume

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/TomDLT/realtimefmri/errors"
)

// NIfTI-1 constants. Only the single-file (.nii) variant is supported; the
// scanner export never produces .hdr/.img pairs.
const (
	niftiHeaderSize = 348
	niftiMagic      = "n+1\x00"

	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
)

// niftiHeader mirrors the subset of the 348-byte NIfTI-1 header the decoder
// needs. Field offsets follow the standard layout.
type niftiHeader struct {
	sizeOfHdr int32
	dim       [8]int16
	datatype  int16
	bitpix    int16
	pixdim    [8]float32
	voxOffset float32
	sclSlope  float32
	sclInter  float32
	qformCode int16
	sformCode int16
	srowX     [4]float32
	srowY     [4]float32
	srowZ     [4]float32
	magic     [4]byte
}

// Load reads a NIfTI-1 volume from path. Malformed or truncated files yield
// an ingestion-classified error so callers can drop the volume and continue.
func Load(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIngestion(err, "volume", "Load", "open")
	}
	defer func() { _ = f.Close() }()

	v, err := Decode(f)
	if err != nil {
		return nil, errors.WrapIngestion(err, "volume", "Load", fmt.Sprintf("decode %s", path))
	}
	return v, nil
}

// Decode reads a NIfTI-1 volume from r.
func Decode(r io.Reader) (*Volume, error) {
	raw := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: header: %v", errors.ErrTruncatedVolume, err)
	}

	order, err := headerByteOrder(raw)
	if err != nil {
		return nil, err
	}

	hdr := parseHeader(raw, order)
	if string(hdr.magic[:]) != niftiMagic {
		return nil, fmt.Errorf("%w: bad magic %q", errors.ErrDecodeFailed, hdr.magic)
	}
	if hdr.dim[0] < 3 {
		return nil, fmt.Errorf("%w: need 3 spatial dimensions, got %d", errors.ErrDecodeFailed, hdr.dim[0])
	}

	shape := [3]int{int(hdr.dim[1]), int(hdr.dim[2]), int(hdr.dim[3])}
	if err := validateShape(shape); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDecodeFailed, err)
	}

	// Skip extension bytes between the header and the data blob.
	skip := int64(hdr.voxOffset) - niftiHeaderSize
	if skip < 0 {
		return nil, fmt.Errorf("%w: vox_offset %f before end of header", errors.ErrDecodeFailed, hdr.voxOffset)
	}
	if skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, fmt.Errorf("%w: extensions: %v", errors.ErrTruncatedVolume, err)
		}
	}

	n := shape[0] * shape[1] * shape[2]
	data, err := readVoxels(r, order, hdr.datatype, n)
	if err != nil {
		return nil, err
	}

	slope := float64(hdr.sclSlope)
	inter := float64(hdr.sclInter)
	if slope != 0 && (slope != 1 || inter != 0) {
		for i := range data {
			data[i] = data[i]*slope + inter
		}
	}

	v := &Volume{Shape: shape, Data: data}
	v.Affine = affineFromHeader(hdr)
	return v, nil
}

// headerByteOrder detects endianness from sizeof_hdr, which must read 348 in
// the file's native order.
func headerByteOrder(raw []byte) (binary.ByteOrder, error) {
	if binary.LittleEndian.Uint32(raw[0:4]) == niftiHeaderSize {
		return binary.LittleEndian, nil
	}
	if binary.BigEndian.Uint32(raw[0:4]) == niftiHeaderSize {
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: sizeof_hdr != 348", errors.ErrDecodeFailed)
}

func parseHeader(raw []byte, order binary.ByteOrder) niftiHeader {
	var h niftiHeader
	h.sizeOfHdr = int32(order.Uint32(raw[0:4]))
	for i := 0; i < 8; i++ {
		h.dim[i] = int16(order.Uint16(raw[40+2*i : 42+2*i]))
	}
	h.datatype = int16(order.Uint16(raw[70:72]))
	h.bitpix = int16(order.Uint16(raw[72:74]))
	for i := 0; i < 8; i++ {
		h.pixdim[i] = math.Float32frombits(order.Uint32(raw[76+4*i : 80+4*i]))
	}
	h.voxOffset = math.Float32frombits(order.Uint32(raw[108:112]))
	h.sclSlope = math.Float32frombits(order.Uint32(raw[112:116]))
	h.sclInter = math.Float32frombits(order.Uint32(raw[116:120]))
	h.qformCode = int16(order.Uint16(raw[252:254]))
	h.sformCode = int16(order.Uint16(raw[254:256]))
	for i := 0; i < 4; i++ {
		h.srowX[i] = math.Float32frombits(order.Uint32(raw[280+4*i : 284+4*i]))
		h.srowY[i] = math.Float32frombits(order.Uint32(raw[296+4*i : 300+4*i]))
		h.srowZ[i] = math.Float32frombits(order.Uint32(raw[312+4*i : 316+4*i]))
	}
	copy(h.magic[:], raw[344:348])
	return h
}

// affineFromHeader prefers the sform rows; without one it falls back to a
// diagonal voxel-size affine.
func affineFromHeader(hdr niftiHeader) [4][4]float64 {
	var aff [4][4]float64
	if hdr.sformCode > 0 {
		for j := 0; j < 4; j++ {
			aff[0][j] = float64(hdr.srowX[j])
			aff[1][j] = float64(hdr.srowY[j])
			aff[2][j] = float64(hdr.srowZ[j])
		}
		aff[3][3] = 1
		return aff
	}
	for i := 0; i < 3; i++ {
		px := float64(hdr.pixdim[i+1])
		if px == 0 {
			px = 1
		}
		aff[i][i] = px
	}
	aff[3][3] = 1
	return aff
}

func readVoxels(r io.Reader, order binary.ByteOrder, datatype int16, n int) ([]float64, error) {
	var elemSize int
	switch datatype {
	case dtUint8:
		elemSize = 1
	case dtInt16:
		elemSize = 2
	case dtInt32, dtFloat32:
		elemSize = 4
	case dtFloat64:
		elemSize = 8
	default:
		return nil, fmt.Errorf("%w: unsupported datatype %d", errors.ErrDecodeFailed, datatype)
	}

	buf := make([]byte, n*elemSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: voxel data: %v", errors.ErrTruncatedVolume, err)
	}

	data := make([]float64, n)
	switch datatype {
	case dtUint8:
		for i := 0; i < n; i++ {
			data[i] = float64(buf[i])
		}
	case dtInt16:
		for i := 0; i < n; i++ {
			data[i] = float64(int16(order.Uint16(buf[2*i:])))
		}
	case dtInt32:
		for i := 0; i < n; i++ {
			data[i] = float64(int32(order.Uint32(buf[4*i:])))
		}
	case dtFloat32:
		for i := 0; i < n; i++ {
			data[i] = float64(math.Float32frombits(order.Uint32(buf[4*i:])))
		}
	case dtFloat64:
		for i := 0; i < n; i++ {
			data[i] = math.Float64frombits(order.Uint64(buf[8*i:]))
		}
	}
	return data, nil
}

// Save writes the volume to path as little-endian float32 NIfTI-1.
func Save(path string, v *Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "volume", "Save", "create")
	}
	defer func() { _ = f.Close() }()

	if err := Encode(f, v); err != nil {
		return errors.Wrap(err, "volume", "Save", "encode")
	}
	return f.Sync()
}

// Encode writes the volume to w as little-endian float32 NIfTI-1.
func Encode(w io.Writer, v *Volume) error {
	raw := make([]byte, niftiHeaderSize)
	le := binary.LittleEndian

	le.PutUint32(raw[0:4], niftiHeaderSize)
	le.PutUint16(raw[40:42], 3) // dim[0]
	le.PutUint16(raw[42:44], uint16(v.Shape[0]))
	le.PutUint16(raw[44:46], uint16(v.Shape[1]))
	le.PutUint16(raw[46:48], uint16(v.Shape[2]))
	for i := 4; i < 8; i++ {
		le.PutUint16(raw[40+2*i:42+2*i], 1)
	}
	le.PutUint16(raw[70:72], dtFloat32)
	le.PutUint16(raw[72:74], 32) // bitpix
	for i := 0; i < 8; i++ {
		le.PutUint32(raw[76+4*i:80+4*i], math.Float32bits(1))
	}
	le.PutUint32(raw[108:112], math.Float32bits(niftiHeaderSize+4)) // vox_offset
	le.PutUint32(raw[112:116], math.Float32bits(1))                 // scl_slope
	le.PutUint16(raw[254:256], 1)                                   // sform_code
	for j := 0; j < 4; j++ {
		le.PutUint32(raw[280+4*j:284+4*j], math.Float32bits(float32(v.Affine[0][j])))
		le.PutUint32(raw[296+4*j:300+4*j], math.Float32bits(float32(v.Affine[1][j])))
		le.PutUint32(raw[312+4*j:316+4*j], math.Float32bits(float32(v.Affine[2][j])))
	}
	copy(raw[344:348], niftiMagic)

	if _, err := w.Write(raw); err != nil {
		return err
	}
	// 4 alignment bytes between header and data (vox_offset = 352).
	if _, err := w.Write(make([]byte, 4)); err != nil {
		return err
	}

	buf := make([]byte, 4*len(v.Data))
	for i, val := range v.Data {
		le.PutUint32(buf[4*i:], math.Float32bits(float32(val)))
	}
	_, err := w.Write(buf)
	return err
}

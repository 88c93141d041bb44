// Package npy reads and writes two dimensional float arrays in the NumPy
// .npy format (version 1.0 on write; 1.0, 2.0 and 3.0 on read).
//
// Values live in memory as float32 and are converted to the requested dtype
// only while encoding, so downcasting to float16 happens right before bytes
// hit the writer.
package npy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/x448/float16"

	"github.com/papercomputeco/wembeddings/pkg/tensor"
)

const (
	magic = "\x93NUMPY"

	// headerAlign matches numpy's ARRAY_ALIGN: the data section starts on a
	// 64 byte boundary.
	headerAlign = 64
)

var (
	// ErrBadMagic is returned when the stream does not start with an NPY preamble.
	ErrBadMagic = errors.New("not an npy array")

	// ErrBadHeader is returned for headers that cannot be parsed.
	ErrBadHeader = errors.New("malformed npy header")

	// ErrUnsupportedShape is returned for arrays that are not two dimensional.
	ErrUnsupportedShape = errors.New("unsupported npy shape")
)

var (
	descrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// Write encodes m as a version 1.0 NPY array of the given dtype.
func Write(w io.Writer, m *tensor.Matrix, dtype DType) error {
	if dtype.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedDType, dtype)
	}

	if _, err := w.Write(header(dtype, m.Rows, m.Cols)); err != nil {
		return fmt.Errorf("writing npy header: %w", err)
	}

	if _, err := w.Write(encode(m.Data[:m.Rows*m.Cols], dtype)); err != nil {
		return fmt.Errorf("writing npy data: %w", err)
	}
	return nil
}

// Marshal returns the NPY encoding of m.
func Marshal(m *tensor.Matrix, dtype DType) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, m, dtype); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func header(dtype DType, rows, cols int) []byte {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d), }",
		dtype.descr(), rows, cols)

	// preamble: magic, 2 version bytes, uint16 header length
	preamble := len(magic) + 2 + 2
	total := preamble + len(dict) + 1
	pad := (headerAlign - total%headerAlign) % headerAlign

	hdr := make([]byte, 0, total+pad)
	hdr = append(hdr, magic...)
	hdr = append(hdr, 1, 0)
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(len(dict)+pad+1))
	hdr = append(hdr, dict...)
	hdr = append(hdr, bytes.Repeat([]byte{' '}, pad)...)
	hdr = append(hdr, '\n')
	return hdr
}

func encode(values []float32, dtype DType) []byte {
	out := make([]byte, len(values)*dtype.Size())
	switch dtype {
	case Float16:
		for i, v := range values {
			binary.LittleEndian.PutUint16(out[i*2:], float16.Fromfloat32(v).Bits())
		}
	case Float32:
		for i, v := range values {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
		}
	case Float64:
		for i, v := range values {
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(float64(v)))
		}
	}
	return out
}

// Read decodes exactly one NPY array from r and returns it with the dtype it
// was stored as. Read never consumes bytes past the end of the array, so
// several arrays concatenated on one stream can be read back to back.
func Read(r io.Reader) (*tensor.Matrix, DType, error) {
	pre := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, pre); err != nil {
		return nil, 0, fmt.Errorf("reading npy preamble: %w", err)
	}
	if string(pre[:len(magic)]) != magic {
		return nil, 0, ErrBadMagic
	}

	var hlen int
	switch major := pre[len(magic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, 0, fmt.Errorf("reading npy header length: %w", err)
		}
		hlen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, 0, fmt.Errorf("reading npy header length: %w", err)
		}
		hlen = int(n)
	default:
		return nil, 0, fmt.Errorf("%w: version %d", ErrBadHeader, major)
	}

	hdr := make([]byte, hlen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, 0, fmt.Errorf("reading npy header: %w", err)
	}

	h, err := parseHeader(string(hdr))
	if err != nil {
		return nil, 0, err
	}

	raw := make([]byte, h.rows*h.cols*h.dtype.Size())
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, 0, fmt.Errorf("reading npy data: %w", err)
	}

	data := decode(raw, h.dtype, h.order)
	if h.fortran {
		data = transpose(data, h.rows, h.cols)
	}

	m, err := tensor.FromData(h.rows, h.cols, data)
	if err != nil {
		return nil, 0, err
	}
	return m, h.dtype, nil
}

// Unmarshal decodes a single NPY array from b.
func Unmarshal(b []byte) (*tensor.Matrix, DType, error) {
	return Read(bytes.NewReader(b))
}

type arrayHeader struct {
	dtype   DType
	order   binary.ByteOrder
	fortran bool
	rows    int
	cols    int
}

func parseHeader(hdr string) (*arrayHeader, error) {
	descr := descrRe.FindStringSubmatch(hdr)
	fortran := fortranRe.FindStringSubmatch(hdr)
	shape := shapeRe.FindStringSubmatch(hdr)
	if descr == nil || fortran == nil || shape == nil {
		return nil, fmt.Errorf("%w: %q", ErrBadHeader, strings.TrimSpace(hdr))
	}

	h := &arrayHeader{
		order:   binary.LittleEndian,
		fortran: fortran[1] == "True",
	}
	if strings.HasPrefix(descr[1], ">") {
		h.order = binary.BigEndian
	}

	var err error
	h.dtype, err = ParseDType(strings.TrimPrefix(descr[1], ">"))
	if err != nil {
		return nil, err
	}

	var dims []int
	for _, f := range strings.Split(shape[1], ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		d, err := strconv.Atoi(f)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%w: shape %q", ErrBadHeader, shape[1])
		}
		dims = append(dims, d)
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("%w: %d dimensions", ErrUnsupportedShape, len(dims))
	}

	h.rows, h.cols = dims[0], dims[1]
	if h.rows != 0 && h.cols > math.MaxInt/h.rows/h.dtype.Size() {
		return nil, fmt.Errorf("%w: shape %q overflows", ErrBadHeader, shape[1])
	}
	return h, nil
}

func decode(raw []byte, dtype DType, order binary.ByteOrder) []float32 {
	n := len(raw) / dtype.Size()
	out := make([]float32, n)
	switch dtype {
	case Float16:
		for i := range out {
			out[i] = float16.Frombits(order.Uint16(raw[i*2:])).Float32()
		}
	case Float32:
		for i := range out {
			out[i] = math.Float32frombits(order.Uint32(raw[i*4:]))
		}
	case Float64:
		for i := range out {
			out[i] = float32(math.Float64frombits(order.Uint64(raw[i*8:])))
		}
	}
	return out
}

// transpose converts column-major data of a rows x cols array into row-major.
func transpose(data []float32, rows, cols int) []float32 {
	out := make([]float32, len(data))
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			out[i*cols+j] = data[j*rows+i]
		}
	}
	return out
}

package npy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedDType is returned for dtypes outside float16/32/64.
var ErrUnsupportedDType = errors.New("unsupported dtype")

// DType is the on-disk element type of an array.
type DType int

const (
	Float16 DType = iota
	Float32
	Float64
)

// ParseDType maps a numpy style dtype name ("float16", "f4", "<f8", ...) to a DType.
func ParseDType(name string) (DType, error) {
	switch strings.ToLower(strings.TrimLeft(name, "<=|")) {
	case "float16", "f2", "half":
		return Float16, nil
	case "float32", "f4", "single":
		return Float32, nil
	case "float64", "f8", "double":
		return Float64, nil
	default:
		return 0, fmt.Errorf("%w: %q (available: float16, float32, float64)", ErrUnsupportedDType, name)
	}
}

// String returns the numpy dtype name.
func (d DType) String() string {
	switch d {
	case Float16:
		return "float16"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("DType(%d)", int(d))
	}
}

// Size is the element width in bytes.
func (d DType) Size() int {
	switch d {
	case Float16:
		return 2
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// descr is the little-endian array-protocol type string written to headers.
func (d DType) descr() string {
	return fmt.Sprintf("<f%d", d.Size())
}

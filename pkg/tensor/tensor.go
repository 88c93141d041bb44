// Package tensor holds the small dense float32 containers passed between the
// encoder, the aggregation step and the archive writer.
package tensor

import (
	"fmt"
	"math"
)

// Matrix is a row-major float32 matrix.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float32, rows*cols),
	}
}

// FromData wraps data as a rows x cols matrix without copying.
func FromData(rows, cols int, data []float32) (*Matrix, error) {
	if rows < 0 || cols < 0 || (rows != 0 && cols > math.MaxInt/rows) {
		return nil, fmt.Errorf("invalid matrix shape (%d, %d)", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("matrix shape (%d, %d) needs %d values, got %d", rows, cols, rows*cols, len(data))
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// Row returns row i as a slice sharing the matrix storage.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// At returns the element at (i, j).
func (m *Matrix) At(i, j int) float32 {
	return m.Data[i*m.Cols+j]
}

// Shape returns the matrix dimensions as a slice, the form the NPY header uses.
func (m *Matrix) Shape() []int {
	return []int{m.Rows, m.Cols}
}

// Tensor3 is a row-major float32 tensor of shape (D0, D1, D2).
type Tensor3 struct {
	D0, D1, D2 int
	Data       []float32
}

// NewTensor3 allocates a zeroed tensor.
func NewTensor3(d0, d1, d2 int) *Tensor3 {
	return &Tensor3{
		D0:   d0,
		D1:   d1,
		D2:   d2,
		Data: make([]float32, d0*d1*d2),
	}
}

// Slice returns the (D1, D2) matrix at index i, sharing storage.
func (t *Tensor3) Slice(i int) *Matrix {
	n := t.D1 * t.D2
	return &Matrix{Rows: t.D1, Cols: t.D2, Data: t.Data[i*n : (i+1)*n]}
}

// Vector returns the D2-length vector at (i, j), sharing storage.
func (t *Tensor3) Vector(i, j int) []float32 {
	off := (i*t.D1 + j) * t.D2
	return t.Data[off : off+t.D2]
}

// Concat stacks matrices with the same column count along the row axis.
// A cols argument is needed so that an empty input still has a shape.
func Concat(cols int, parts ...*Matrix) (*Matrix, error) {
	rows := 0
	for i, p := range parts {
		if p.Cols != cols {
			return nil, fmt.Errorf("part %d has %d columns, want %d", i, p.Cols, cols)
		}
		rows += p.Rows
	}

	out := &Matrix{Rows: rows, Cols: cols, Data: make([]float32, 0, rows*cols)}
	for _, p := range parts {
		out.Data = append(out.Data, p.Data[:p.Rows*p.Cols]...)
	}
	return out, nil
}

// Head returns the first n rows of m, sharing storage.
func (m *Matrix) Head(n int) *Matrix {
	return &Matrix{Rows: n, Cols: m.Cols, Data: m.Data[:n*m.Cols]}
}

// Package encoder defines the transformer encoder contract and the layer
// averaging applied to its hidden states.
package encoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/wembeddings/pkg/tensor"
)

// ErrEncoding is returned when the encoder fails to produce hidden states.
var ErrEncoding = errors.New("encoding failed")

// Input is one padded batch of subword rows.
type Input struct {
	// IDs holds equally long rows of subword IDs.
	IDs [][]int64

	// Lengths is the number of real (non-padding) positions of each row.
	Lengths []int
}

// Shape returns (rows, width) of the input.
func (in *Input) Shape() (int, int) {
	if len(in.IDs) == 0 {
		return 0, 0
	}
	return len(in.IDs), len(in.IDs[0])
}

// Mask returns the flattened attention mask: 1 for real positions, 0 for
// padding.
func (in *Input) Mask() []int64 {
	rows, width := in.Shape()
	mask := make([]int64, rows*width)
	for i, n := range in.Lengths {
		for j := 0; j < n && j < width; j++ {
			mask[i*width+j] = 1
		}
	}
	return mask
}

// FlatIDs returns the IDs in row-major order.
func (in *Input) FlatIDs() []int64 {
	rows, width := in.Shape()
	out := make([]int64, 0, rows*width)
	for _, row := range in.IDs {
		out = append(out, row...)
	}
	return out
}

// HiddenStates is the stack of every hidden state an encoder produced, with
// shape (Layers, Rows, Width, Hidden) in row-major order. Layer 0 is the
// embedding output.
type HiddenStates struct {
	Layers int
	Rows   int
	Width  int
	Hidden int
	Data   []float32
}

// Average returns the elementwise mean of layers [lo, hi) with shape
// (Rows, Width, Hidden).
func (hs *HiddenStates) Average(lo, hi int) (*tensor.Tensor3, error) {
	if lo < 0 || hi > hs.Layers || hi <= lo {
		return nil, fmt.Errorf("layer range [%d:%d) outside %d hidden states", lo, hi, hs.Layers)
	}

	out := tensor.NewTensor3(hs.Rows, hs.Width, hs.Hidden)
	n := len(out.Data)
	for l := lo; l < hi; l++ {
		layer := hs.Data[l*n : (l+1)*n]
		for i, v := range layer {
			out.Data[i] += v
		}
	}

	inv := 1 / float32(hi-lo)
	for i := range out.Data {
		out.Data[i] *= inv
	}
	return out, nil
}

// Encoder runs a pretrained transformer over padded subword IDs.
type Encoder interface {
	// HiddenStates returns every hidden state for the input rows.
	HiddenStates(ctx context.Context, in *Input) (*HiddenStates, error)

	// Close releases the model.
	Close() error
}

package testutils

import (
	"context"

	"github.com/papercomputeco/wembeddings/pkg/encoder"
)

// MockEncoder is a context-free encoder: hidden state (l, r, t, h) is
// id + h*1000 + l*10, so every value is exact in float32 and splitting a
// sentence cannot change it.
type MockEncoder struct {
	Layers int
	Hidden int

	// Err is returned by every HiddenStates call when set.
	Err error

	Calls  int
	Rows   []int
	Closed bool
}

func NewMockEncoder(layers, hidden int) *MockEncoder {
	return &MockEncoder{Layers: layers, Hidden: hidden}
}

func (m *MockEncoder) HiddenStates(_ context.Context, in *encoder.Input) (*encoder.HiddenStates, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}

	rows, width := in.Shape()
	m.Rows = append(m.Rows, rows)
	hs := &encoder.HiddenStates{
		Layers: m.Layers,
		Rows:   rows,
		Width:  width,
		Hidden: m.Hidden,
		Data:   make([]float32, 0, m.Layers*rows*width*m.Hidden),
	}
	ids := in.FlatIDs()
	for l := range m.Layers {
		for _, id := range ids {
			for h := range m.Hidden {
				hs.Data = append(hs.Data, float32(id+int64(h)*1000+int64(l)*10))
			}
		}
	}
	return hs, nil
}

func (m *MockEncoder) Close() error {
	m.Closed = true
	return nil
}

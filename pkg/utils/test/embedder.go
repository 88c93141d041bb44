// Package testutils holds fakes shared by wembed's test suites.
package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/wembeddings/pkg/models"
	"github.com/papercomputeco/wembeddings/pkg/tensor"
)

// MockEmbedder is a test embedder that returns predictable embeddings.
// Row j of sentence s is (j, len(s[j]), len(s[j]), ...).
type MockEmbedder struct {
	// Model is the only model name accepted; others fail with
	// models.ErrUnknownModel.
	Model string

	// Hidden is the embedding width. Defaults to 2.
	Hidden int

	// Err is returned by every Compute call when set, or only by call
	// number FailOnCall (1-based) when that is non-zero.
	Err        error
	FailOnCall int

	Calls     int
	Sentences [][]string
	Closed    bool
}

func NewMockEmbedder(model string) *MockEmbedder {
	return &MockEmbedder{Model: model, Hidden: 2}
}

func (m *MockEmbedder) Compute(_ context.Context, model string, sentences [][]string) ([]*tensor.Matrix, error) {
	if model != m.Model {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownModel, model)
	}
	m.Calls++
	if m.Err != nil && (m.FailOnCall == 0 || m.FailOnCall == m.Calls) {
		return nil, m.Err
	}

	m.Sentences = append(m.Sentences, sentences...)

	hidden := m.Hidden
	if hidden == 0 {
		hidden = 2
	}

	out := make([]*tensor.Matrix, len(sentences))
	for i, s := range sentences {
		mat := tensor.NewMatrix(len(s), hidden)
		for j, w := range s {
			row := mat.Row(j)
			row[0] = float32(j)
			for h := 1; h < hidden; h++ {
				row[h] = float32(len(w))
			}
		}
		out[i] = mat
	}
	return out, nil
}

func (m *MockEmbedder) Close() error {
	m.Closed = true
	return nil
}

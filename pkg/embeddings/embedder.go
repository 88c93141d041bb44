// Package embeddings
package embeddings

import (
	"context"
	"errors"
	"log/slog"

	"github.com/papercomputeco/wembeddings/pkg/tensor"
)

// ErrEmbedding is returned when computing embeddings fails.
var ErrEmbedding = errors.New("embedding failed")

// Embedder computes contextual word embeddings.
type Embedder interface {
	// Compute returns one (words, hidden) matrix per sentence, in input
	// order, using the named model.
	Compute(ctx context.Context, model string, sentences [][]string) ([]*tensor.Matrix, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// Embedder providers.
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

// Options selects and configures an Embedder.
type Options struct {
	// Provider is ProviderLocal or ProviderRemote.
	Provider string

	// Target is the server address of the remote provider.
	Target string

	// Models are the registry names the local provider loads.
	Models    []string
	ModelsDir string

	OnnxRuntimeLib string
	Threads        int
	MaxFormLen     int

	Logger *slog.Logger
}

// Factory builds an Embedder from Options.
type Factory func(o *Options) (Embedder, error)

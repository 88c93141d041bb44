// Package local implements pkg/embeddings' Embedder by running the encoder
// in-process: tokenize and split, encode, average layers, pool subwords into
// words and reassemble split sentences.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/papercomputeco/wembeddings/pkg/embeddings"
	"github.com/papercomputeco/wembeddings/pkg/encoder"
	"github.com/papercomputeco/wembeddings/pkg/logger"
	"github.com/papercomputeco/wembeddings/pkg/models"
	"github.com/papercomputeco/wembeddings/pkg/segment"
	"github.com/papercomputeco/wembeddings/pkg/tensor"
	"github.com/papercomputeco/wembeddings/pkg/tokenizer"
)

// Model is a loaded registry entry.
type Model struct {
	Spec      models.Model
	Tokenizer tokenizer.Tokenizer
	Encoder   encoder.Encoder
}

// Config holds configuration for the local embedder.
type Config struct {
	// MaxFormLen caps the runes of each word that are tokenized.
	// Defaults to segment.DefaultMaxFormLen.
	MaxFormLen int

	// MaxSubwords is the subword budget of one encoder row.
	// Defaults to segment.MaxSubwordsPerSentence.
	MaxSubwords int

	Logger *slog.Logger
}

type loaded struct {
	Model
	segmenter *segment.Segmenter
}

// Embedder keeps one or more loaded models. Compute calls are serialized:
// one batch is fully processed before the next starts.
type Embedder struct {
	mu     sync.Mutex
	models map[string]*loaded
	logger *slog.Logger
}

// NewEmbedder creates an embedder over already loaded models. The embedder
// owns them and closes them in Close.
func NewEmbedder(cfg Config, ms ...Model) (*Embedder, error) {
	if len(ms) == 0 {
		return nil, errors.New("at least one model is required")
	}

	if cfg.MaxFormLen == 0 {
		cfg.MaxFormLen = segment.DefaultMaxFormLen
	}
	if cfg.MaxSubwords == 0 {
		cfg.MaxSubwords = segment.MaxSubwordsPerSentence
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	e := &Embedder{
		models: make(map[string]*loaded, len(ms)),
		logger: cfg.Logger,
	}
	for _, m := range ms {
		if m.Tokenizer == nil || m.Encoder == nil {
			return nil, fmt.Errorf("model %s: tokenizer and encoder are required", m.Spec.Name)
		}
		e.models[m.Spec.Name] = &loaded{
			Model: m,
			segmenter: segment.New(m.Tokenizer,
				segment.WithMaxFormLen(cfg.MaxFormLen),
				segment.WithMaxSubwords(cfg.MaxSubwords),
			),
		}
	}
	return e, nil
}

// Compute returns one word embedding matrix per sentence.
func (e *Embedder) Compute(ctx context.Context, model string, sentences [][]string) ([]*tensor.Matrix, error) {
	m, ok := e.models[model]
	if !ok {
		e.logger.Warn("no such embedding model", "model", model)
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownModel, model)
	}

	if len(sentences) == 0 {
		return []*tensor.Matrix{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	startTokenize := time.Now()
	batch, err := m.segmenter.Build(sentences)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}

	startEmbed := time.Now()
	out, err := m.embed(ctx, batch)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("computed embeddings",
		"model", model,
		"embed_ms", time.Since(startEmbed).Milliseconds(),
		"tokenize_ms", startEmbed.Sub(startTokenize).Milliseconds(),
		"batch", len(sentences),
		"parts", batch.NumParts(),
		"max_sentence_len", batch.MaxSentenceLen,
		"max_subwords", batch.Width,
	)

	return out, nil
}

func (m *loaded) embed(ctx context.Context, batch *segment.Batch) ([]*tensor.Matrix, error) {
	hs, err := m.Encoder.HiddenStates(ctx, &encoder.Input{
		IDs:     batch.Subwords,
		Lengths: batch.Lengths,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}

	lo, hi, err := m.Spec.LayerRange(hs.Layers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}

	subwords, err := hs.Average(lo, hi)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}

	words, err := batch.Pool(subwords)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}

	out, err := batch.Reassemble(words)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}
	return out, nil
}

// Models returns the names of the loaded models.
func (e *Embedder) Models() []string {
	names := make([]string, 0, len(e.models))
	for name := range e.models {
		names = append(names, name)
	}
	return names
}

// Close releases every loaded tokenizer and encoder.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for _, m := range e.models {
		errs = append(errs, m.Encoder.Close(), m.Tokenizer.Close())
	}
	return errors.Join(errs...)
}

// Ensure Embedder implements embeddings.Embedder
var _ embeddings.Embedder = (*Embedder)(nil)

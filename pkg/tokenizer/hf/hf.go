// Package hf implements tokenizer.Tokenizer on top of HuggingFace tokenizers
// through github.com/daulet/tokenizers, so any tokenizer.json (WordPiece,
// SentencePiece/Unigram, BPE) can be used.
//
// Building this package needs libtokenizers.a on the linker path.
package hf

import (
	"fmt"
	"sync"

	"github.com/daulet/tokenizers"

	"github.com/papercomputeco/wembeddings/pkg/tokenizer"
)

// Tokenizer wraps a loaded tokenizer.json.
type Tokenizer struct {
	mu sync.Mutex
	tk *tokenizers.Tokenizer

	// prefix and suffix are the boundary tokens the post-processor adds
	// around a single sequence.
	prefix []int64
	suffix []int64
}

// NewFromFile loads the tokenizer.json at path. It fails when the
// tokenizer's post-processor adds no leading boundary token.
func NewFromFile(path string) (*Tokenizer, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer %s: %w", path, err)
	}

	t := &Tokenizer{tk: tk}
	if err := t.learnBoundaries(); err != nil {
		_ = tk.Close()
		return nil, fmt.Errorf("loading tokenizer %s: %w", path, err)
	}
	return t, nil
}

// learnBoundaries encodes a one-word sample with and without special tokens
// and keeps what the post-processor added around it.
func (t *Tokenizer) learnBoundaries() error {
	const sample = "a"

	plain, _ := t.tk.Encode(sample, false)
	special, _ := t.tk.Encode(sample, true)

	var err error
	t.prefix, t.suffix, err = tokenizer.Boundaries(toInt64(plain), toInt64(special))
	return err
}

// Encode tokenizes one word without boundary tokens.
func (t *Tokenizer) Encode(word string) ([]int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tk == nil {
		return nil, fmt.Errorf("tokenizer is closed")
	}

	ids, _ := t.tk.Encode(word, false)
	return toInt64(ids), nil
}

// Wrap adds the learned boundary tokens around ids.
func (t *Tokenizer) Wrap(ids []int64) []int64 {
	out := make([]int64, 0, len(t.prefix)+len(ids)+len(t.suffix))
	out = append(out, t.prefix...)
	out = append(out, ids...)
	return append(out, t.suffix...)
}

// Close frees the native tokenizer.
func (t *Tokenizer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tk == nil {
		return nil
	}
	err := t.tk.Close()
	t.tk = nil
	return err
}

func toInt64(ids []uint32) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

var _ tokenizer.Tokenizer = (*Tokenizer)(nil)

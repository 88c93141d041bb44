// Package segment turns batches of tokenized sentences into padded encoder
// input and turns encoder output back into one word-level matrix per
// sentence.
//
// Sentences whose subwords do not fit into one encoder window are split into
// parts at word boundaries. Each part is encoded independently and the parts
// are concatenated again by Reassemble.
package segment

import (
	"fmt"

	"github.com/papercomputeco/wembeddings/pkg/tokenizer"
)

const (
	// MaxSubwordsPerSentence is the subword budget of one part, not counting
	// the two boundary tokens (512 encoder positions).
	MaxSubwordsPerSentence = 510

	// DefaultMaxFormLen is the number of runes of a word that are tokenized.
	DefaultMaxFormLen = 64
)

// Batch is the padded encoder input of a batch of sentences.
type Batch struct {
	// Subwords holds one row per part: boundary-wrapped subword IDs padded
	// with 0 to Width.
	Subwords [][]int64

	// Segments holds one row per part mapping every subword after the
	// leading boundary token to the index of its word inside the part.
	// Rows are Width-1 long and padded with MaxSentenceLen, the sentinel
	// bucket dropped by Pool.
	Segments [][]int32

	// Lengths is the unpadded length of each Subwords row.
	Lengths []int

	// Parts lists, per input sentence, the word count of each of its parts.
	Parts [][]int

	// MaxSentenceLen is the word count of the longest sentence in the batch.
	MaxSentenceLen int

	// Width is the padded row length of Subwords.
	Width int
}

// NumParts returns the number of encoder rows in the batch.
func (b *Batch) NumParts() int {
	return len(b.Subwords)
}

// Segmenter builds batches with one tokenizer.
type Segmenter struct {
	tok         tokenizer.Tokenizer
	maxSubwords int
	maxFormLen  int
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithMaxSubwords overrides MaxSubwordsPerSentence.
func WithMaxSubwords(n int) Option {
	return func(s *Segmenter) {
		s.maxSubwords = n
	}
}

// WithMaxFormLen overrides DefaultMaxFormLen.
func WithMaxFormLen(n int) Option {
	return func(s *Segmenter) {
		s.maxFormLen = n
	}
}

// New returns a Segmenter using tok.
func New(tok tokenizer.Tokenizer, opts ...Option) *Segmenter {
	s := &Segmenter{
		tok:         tok,
		maxSubwords: MaxSubwordsPerSentence,
		maxFormLen:  DefaultMaxFormLen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// part accumulates the subwords of one encoder row.
type part struct {
	subwords []int64
	segments []int32
	words    int
}

// Build tokenizes sentences and lays them out as padded parts.
//
// Words are truncated to the max form length before tokenization. When a
// word's subwords would overflow the current part, the part is closed and
// the word starts a new one. A single word that alone exceeds the budget
// gets a part of its own, clipped to the budget.
func (s *Segmenter) Build(sentences [][]string) (*Batch, error) {
	b := &Batch{
		Parts: make([][]int, len(sentences)),
	}

	var parts []part
	for i, sentence := range sentences {
		b.MaxSentenceLen = max(b.MaxSentenceLen, len(sentence))

		current := part{}
		for _, word := range sentence {
			ids, err := s.tok.Encode(truncate(word, s.maxFormLen))
			if err != nil {
				return nil, fmt.Errorf("tokenizing %q: %w", word, err)
			}
			if len(ids) > s.maxSubwords {
				ids = ids[:s.maxSubwords]
			}

			if current.words > 0 && len(current.subwords)+len(ids) > s.maxSubwords {
				parts = append(parts, current)
				b.Parts[i] = append(b.Parts[i], current.words)
				current = part{}
			}

			for range ids {
				current.segments = append(current.segments, int32(current.words))
			}
			current.subwords = append(current.subwords, ids...)
			current.words++
		}
		parts = append(parts, current)
		b.Parts[i] = append(b.Parts[i], current.words)
	}

	b.Subwords = make([][]int64, len(parts))
	b.Lengths = make([]int, len(parts))
	for i, p := range parts {
		b.Subwords[i] = s.tok.Wrap(p.subwords)
		b.Lengths[i] = len(b.Subwords[i])
		b.Width = max(b.Width, b.Lengths[i])
	}

	for i := range b.Subwords {
		b.Subwords[i] = padInt64(b.Subwords[i], b.Width, 0)
	}

	b.Segments = make([][]int32, len(parts))
	sentinel := int32(b.MaxSentenceLen)
	for i, p := range parts {
		b.Segments[i] = padInt32(p.segments, max(b.Width-1, 0), sentinel)
	}

	return b, nil
}

func truncate(word string, n int) string {
	if n <= 0 {
		return word
	}
	count := 0
	for i := range word {
		if count == n {
			return word[:i]
		}
		count++
	}
	return word
}

func padInt64(row []int64, width int, pad int64) []int64 {
	out := make([]int64, width)
	copy(out, row)
	for i := len(row); i < width; i++ {
		out[i] = pad
	}
	return out
}

func padInt32(row []int32, width int, pad int32) []int32 {
	out := make([]int32, width)
	copy(out, row)
	for i := len(row); i < width; i++ {
		out[i] = pad
	}
	return out
}

package segment

import (
	"fmt"

	"github.com/papercomputeco/wembeddings/pkg/tensor"
)

// Pool averages subword embeddings into word embeddings.
//
// subwords has shape (parts, Width, hidden) and holds one vector per encoder
// position, leading boundary token included. The result has shape
// (parts, MaxSentenceLen, hidden): row j of part p is the unweighted mean of
// the subwords whose segment index is j. Positions mapped to the sentinel
// bucket (the trailing boundary token and padding) are dropped, and words
// without subwords stay zero.
func (b *Batch) Pool(subwords *tensor.Tensor3) (*tensor.Tensor3, error) {
	if subwords.D0 != b.NumParts() || subwords.D1 < b.Width {
		return nil, fmt.Errorf("subword embeddings have shape (%d, %d, %d), want (%d, %d, _)",
			subwords.D0, subwords.D1, subwords.D2, b.NumParts(), b.Width)
	}

	hidden := subwords.D2
	words := tensor.NewTensor3(b.NumParts(), b.MaxSentenceLen, hidden)
	counts := make([]int, b.MaxSentenceLen)

	for p, segments := range b.Segments {
		clear(counts)
		for t, seg := range segments {
			if int(seg) >= b.MaxSentenceLen {
				continue
			}
			// position 0 is the leading boundary token
			src := subwords.Vector(p, t+1)
			dst := words.Vector(p, int(seg))
			for h := range hidden {
				dst[h] += src[h]
			}
			counts[seg]++
		}

		for w, n := range counts {
			if n <= 1 {
				continue
			}
			inv := 1 / float32(n)
			dst := words.Vector(p, w)
			for h := range dst {
				dst[h] *= inv
			}
		}
	}

	return words, nil
}

// Reassemble concatenates the valid rows of each sentence's parts, returning
// one (words, hidden) matrix per input sentence in input order.
func (b *Batch) Reassemble(words *tensor.Tensor3) ([]*tensor.Matrix, error) {
	if words.D0 != b.NumParts() {
		return nil, fmt.Errorf("word embeddings have %d parts, batch has %d", words.D0, b.NumParts())
	}

	out := make([]*tensor.Matrix, len(b.Parts))
	next := 0
	for i, counts := range b.Parts {
		pieces := make([]*tensor.Matrix, len(counts))
		for j, n := range counts {
			if n > words.D1 {
				return nil, fmt.Errorf("part %d holds %d words, embeddings have room for %d", next, n, words.D1)
			}
			pieces[j] = words.Slice(next).Head(n)
			next++
		}

		m, err := tensor.Concat(words.D2, pieces...)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}

	return out, nil
}

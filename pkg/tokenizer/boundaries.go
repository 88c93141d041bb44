package tokenizer

import (
	"errors"
	"fmt"
	"slices"
)

// ErrNoBoundaries is returned when a tokenizer adds no leading boundary token
// around a sequence. Pooling always drops position 0, so such a tokenizer
// would lose the first real subword of every part.
var ErrNoBoundaries = errors.New("tokenizer adds no boundary tokens")

// Boundaries finds plain inside special, the encodings of the same text
// without and with special tokens, and returns what special adds before and
// after it.
func Boundaries(plain, special []int64) (prefix, suffix []int64, err error) {
	if len(plain) == 0 {
		return nil, nil, fmt.Errorf("%w: empty encoding", ErrNoBoundaries)
	}

	for i := 0; i+len(plain) <= len(special); i++ {
		if !slices.Equal(special[i:i+len(plain)], plain) {
			continue
		}
		prefix = slices.Clone(special[:i])
		suffix = slices.Clone(special[i+len(plain):])
		if len(prefix) == 0 {
			return nil, nil, fmt.Errorf("%w: nothing precedes the sequence", ErrNoBoundaries)
		}
		return prefix, suffix, nil
	}

	return nil, nil, fmt.Errorf("%w: %v not found in %v", ErrNoBoundaries, plain, special)
}

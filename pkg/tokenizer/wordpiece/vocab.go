package wordpiece

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// vocab is a WordPiece vocabulary: the 0-indexed line number of a token is
// its ID.
type vocab struct {
	tokenToID map[string]int64

	unkID int64
	clsID int64
	sepID int64
}

func loadVocabFile(path string) (*vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	v, err := readVocab(f)
	if err != nil {
		return nil, fmt.Errorf("vocab %s: %w", path, err)
	}
	return v, nil
}

func readVocab(r io.Reader) (*vocab, error) {
	tokenToID := make(map[string]int64, 32000)

	var n int64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tok := strings.TrimRight(scanner.Text(), "\r")
		if _, dup := tokenToID[tok]; !dup {
			tokenToID[tok] = n
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}

	v := &vocab{tokenToID: tokenToID}

	specials := []struct {
		name string
		dest *int64
	}{
		{"[UNK]", &v.unkID},
		{"[CLS]", &v.clsID},
		{"[SEP]", &v.sepID},
	}
	for _, s := range specials {
		id, ok := tokenToID[s.name]
		if !ok {
			return nil, fmt.Errorf("missing special token %s", s.name)
		}
		*s.dest = id
	}

	return v, nil
}

func (v *vocab) lookup(token string) (int64, bool) {
	id, ok := v.tokenToID[token]
	return id, ok
}

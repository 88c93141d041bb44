// Package wordpiece is a native BERT tokenizer: basic text cleanup and
// punctuation splitting followed by greedy longest-match WordPiece over a
// vocab.txt vocabulary.
package wordpiece

import (
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/papercomputeco/wembeddings/pkg/tokenizer"
)

const (
	// maxRunesPerToken matches BERT: longer tokens become [UNK].
	maxRunesPerToken = 100

	continuationPrefix = "##"
)

// Config configures a Tokenizer.
type Config struct {
	// Lowercase lowercases input and strips accents, as uncased BERT
	// vocabularies expect.
	Lowercase bool
}

// Tokenizer is a BERT WordPiece tokenizer.
type Tokenizer struct {
	vocab     *vocab
	lowercase bool
}

// NewFromFile loads the vocab.txt at path.
func NewFromFile(path string, cfg Config) (*Tokenizer, error) {
	v, err := loadVocabFile(path)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{vocab: v, lowercase: cfg.Lowercase}, nil
}

// New reads a vocabulary from r, one token per line.
func New(r io.Reader, cfg Config) (*Tokenizer, error) {
	v, err := readVocab(r)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{vocab: v, lowercase: cfg.Lowercase}, nil
}

// Encode tokenizes one word without boundary tokens. A word may still split
// into several basic tokens, e.g. "don't" becomes "don", "'", "t".
func (t *Tokenizer) Encode(word string) ([]int64, error) {
	var ids []int64
	for _, tok := range t.basicTokens(word) {
		ids = append(ids, t.wordPiece(tok)...)
	}
	return ids, nil
}

// Wrap returns [CLS] ids [SEP].
func (t *Tokenizer) Wrap(ids []int64) []int64 {
	out := make([]int64, 0, len(ids)+2)
	out = append(out, t.vocab.clsID)
	out = append(out, ids...)
	return append(out, t.vocab.sepID)
}

// Close is a no-op; the vocabulary lives in memory.
func (t *Tokenizer) Close() error {
	return nil
}

func (t *Tokenizer) basicTokens(text string) []string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
			continue
		case isWhitespace(r):
			b.WriteRune(' ')
		case isCJK(r):
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	var out []string
	for _, tok := range strings.Fields(b.String()) {
		if t.lowercase {
			tok = stripAccents(strings.ToLower(tok))
		}
		out = append(out, splitPunctuation(tok)...)
	}
	return out
}

func (t *Tokenizer) wordPiece(token string) []int64 {
	chars := []rune(token)
	if len(chars) > maxRunesPerToken {
		return []int64{t.vocab.unkID}
	}

	var ids []int64
	for start := 0; start < len(chars); {
		end := len(chars)
		var (
			id    int64
			found bool
		)
		for ; start < end; end-- {
			sub := string(chars[start:end])
			if start > 0 {
				sub = continuationPrefix + sub
			}
			if id, found = t.vocab.lookup(sub); found {
				break
			}
		}
		if !found {
			return []int64{t.vocab.unkID}
		}
		ids = append(ids, id)
		start = end
	}
	return ids
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func splitPunctuation(tok string) []string {
	var (
		out     []string
		current []rune
	)
	for _, r := range tok {
		if isPunctuation(r) {
			if len(current) > 0 {
				out = append(out, string(current))
				current = current[:0]
			}
			out = append(out, string(r))
			continue
		}
		current = append(current, r)
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	return out
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.In(r, unicode.Cc, unicode.Cf)
}

// isPunctuation treats every non-alphanumeric ASCII symbol as punctuation,
// like BERT, on top of the Unicode P* categories.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}

var _ tokenizer.Tokenizer = (*Tokenizer)(nil)

// Package tokenizerutils is the tokenizer utility package
package tokenizerutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/wembeddings/pkg/tokenizer"
	"github.com/papercomputeco/wembeddings/pkg/tokenizer/hf"
	"github.com/papercomputeco/wembeddings/pkg/tokenizer/wordpiece"
)

const (
	tokenizerJSON = "tokenizer.json"
	vocabTxt      = "vocab.txt"
)

type NewTokenizerOpts struct {
	// Dir is the model artifact directory.
	Dir string

	// PretrainedID decides casing for bare vocab.txt vocabularies.
	PretrainedID string
}

// NewTokenizer loads tokenizer.json from the artifact directory, falling back
// to a native WordPiece tokenizer over vocab.txt.
func NewTokenizer(o *NewTokenizerOpts) (tokenizer.Tokenizer, error) {
	path := filepath.Join(o.Dir, tokenizerJSON)
	if _, err := os.Stat(path); err == nil {
		return hf.NewFromFile(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking %s: %w", path, err)
	}

	path = filepath.Join(o.Dir, vocabTxt)
	if _, err := os.Stat(path); err == nil {
		return wordpiece.NewFromFile(path, wordpiece.Config{
			Lowercase: strings.Contains(o.PretrainedID, "uncased"),
		})
	}

	return nil, fmt.Errorf("no %s or %s in %s", tokenizerJSON, vocabTxt, o.Dir)
}

// Package conllu reads the surface forms of tokenized sentences from CoNLL-U.
package conllu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Columns is the number of tab separated fields on a CoNLL-U token line.
const Columns = 10

// ErrMalformedLine is returned for token lines without exactly ten columns.
var ErrMalformedLine = errors.New("malformed CoNLL-U line")

// Sentence is the ordered list of word forms (the FORM column) of a sentence.
type Sentence []string

// Only plain integer IDs are words: multiword token ranges (1-2) and empty
// nodes (1.1) are skipped.
var wordLine = regexp.MustCompile(`^[0-9]+\t`)

// Read parses every sentence in r. A sentence is a block of non-blank lines;
// comment lines open a block but contribute no words, so a block holding only
// comments yields an empty sentence.
func Read(r io.Reader) ([]Sentence, error) {
	var (
		sentences  []Sentence
		inSentence bool
		lineNo     int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			inSentence = false
			continue
		}

		if !inSentence {
			sentences = append(sentences, Sentence{})
			inSentence = true
		}

		if !wordLine.MatchString(line) {
			continue
		}

		columns := strings.Split(line, "\t")
		if len(columns) != Columns {
			return nil, fmt.Errorf("%w: line %d has %d columns, want %d", ErrMalformedLine, lineNo, len(columns), Columns)
		}

		last := len(sentences) - 1
		sentences[last] = append(sentences[last], columns[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading CoNLL-U: %w", err)
	}

	return sentences, nil
}

// ReadFile parses the CoNLL-U file at path.
func ReadFile(path string) ([]Sentence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sentences, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sentences, nil
}

// Words returns the total number of words over all sentences.
func Words(sentences []Sentence) int {
	n := 0
	for _, s := range sentences {
		n += len(s)
	}
	return n
}

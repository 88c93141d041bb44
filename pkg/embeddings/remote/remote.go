// Package remote implements pkg/embeddings' Embedder as a client of a wembed
// server: sentences are posted as JSON and the response body is read back as
// one NPY array per sentence.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/papercomputeco/wembeddings/pkg/embeddings"
	"github.com/papercomputeco/wembeddings/pkg/npy"
	"github.com/papercomputeco/wembeddings/pkg/tensor"
)

// Embedder posts batches to a remote wembed server.
type Embedder struct {
	url        string
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the remote embedder.
type EmbedderConfig struct {
	// Target is the server address, either "host:port" or a full URL.
	Target string
}

// Request is the JSON body sent to the server.
type Request struct {
	Model     string     `json:"model"`
	Sentences [][]string `json:"sentences"`
}

// NewEmbedder creates a new remote embedder. Requests never time out.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.Target == "" {
		return nil, errors.New("remote embedder requires a target address")
	}

	url := cfg.Target
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}

	return &Embedder{
		url:        url,
		httpClient: &http.Client{},
	}, nil
}

// Compute sends the sentences to the server and decodes one matrix per
// sentence from the response stream.
func (e *Embedder) Compute(ctx context.Context, model string, sentences [][]string) ([]*tensor.Matrix, error) {
	if sentences == nil {
		sentences = [][]string{}
	}

	jsonBody, err := MarshalRequest(Request{Model: model, Sentences: sentences})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", embeddings.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", embeddings.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", embeddings.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: server returned status %d: %s",
			embeddings.ErrEmbedding, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body := bufio.NewReader(resp.Body)
	out := make([]*tensor.Matrix, 0, len(sentences))
	for i := range sentences {
		m, _, err := npy.Read(body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading array %d of %d: %v",
				embeddings.ErrEmbedding, i, len(sentences), err)
		}
		out = append(out, m)
	}

	return out, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

// MarshalRequest encodes a request as JSON with every non-ASCII character
// escaped as \uXXXX, surrogate pairs included.
func MarshalRequest(r Request) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.Grow(len(raw))
	for len(raw) > 0 {
		c, size := utf8.DecodeRune(raw)
		raw = raw[size:]
		switch {
		case c < utf8.RuneSelf:
			b.WriteRune(c)
		case c > 0xFFFF:
			r1, r2 := utf16.EncodeRune(c)
			fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(&b, `\u%04x`, c)
		}
	}
	return b.Bytes(), nil
}

// Ensure Embedder implements embeddings.Embedder
var _ embeddings.Embedder = (*Embedder)(nil)

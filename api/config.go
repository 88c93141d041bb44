// Package api provides the HTTP server that computes word embeddings for
// remote wembed clients.
package api

import (
	"github.com/papercomputeco/wembeddings/pkg/models"
	"github.com/papercomputeco/wembeddings/pkg/npy"
)

// DefaultBodyLimit is the largest request body the server accepts.
const DefaultBodyLimit = 64 << 20

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// DType is the element type of the returned arrays. The zero value is float16.
	DType npy.DType

	// Registry is listed by GET /models. Defaults to models.Default().
	Registry *models.Registry

	// Loaded names the models the embedder can serve.
	Loaded []string

	// BodyLimit caps request bodies in bytes. Defaults to DefaultBodyLimit.
	BodyLimit int
}

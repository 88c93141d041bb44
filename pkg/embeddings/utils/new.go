// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"path/filepath"

	"github.com/papercomputeco/wembeddings/pkg/embeddings"
	"github.com/papercomputeco/wembeddings/pkg/embeddings/local"
	"github.com/papercomputeco/wembeddings/pkg/embeddings/remote"
	"github.com/papercomputeco/wembeddings/pkg/encoder/onnx"
	"github.com/papercomputeco/wembeddings/pkg/logger"
	"github.com/papercomputeco/wembeddings/pkg/models"
	tokenizerutils "github.com/papercomputeco/wembeddings/pkg/tokenizer/utils"
)

const modelFile = "model.onnx"

// NewEmbedder builds the embedder selected by o.Provider. It satisfies
// embeddings.Factory.
func NewEmbedder(o *embeddings.Options) (embeddings.Embedder, error) {
	switch o.Provider {
	case embeddings.ProviderLocal:
		return newLocal(o)
	case embeddings.ProviderRemote:
		return remote.NewEmbedder(remote.EmbedderConfig{
			Target: o.Target,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.Provider)
	}
}

func newLocal(o *embeddings.Options) (embeddings.Embedder, error) {
	registry := models.Default()
	log := o.Logger
	if log == nil {
		log = logger.Nop()
	}

	loaded := make([]local.Model, 0, len(o.Models))
	closeLoaded := func() {
		for _, m := range loaded {
			_ = m.Encoder.Close()
			_ = m.Tokenizer.Close()
		}
	}

	for _, name := range o.Models {
		spec, err := registry.Lookup(name)
		if err != nil {
			log.Warn("no such embedding model", "model", name)
			closeLoaded()
			return nil, err
		}

		m, err := LoadModel(spec, o.ModelsDir, o.OnnxRuntimeLib, o.Threads)
		if err != nil {
			closeLoaded()
			return nil, fmt.Errorf("loading model %s: %w", name, err)
		}
		log.Info("loaded model", "model", name, "dir", spec.Dir(o.ModelsDir))
		loaded = append(loaded, m)
	}

	e, err := local.NewEmbedder(local.Config{
		MaxFormLen: o.MaxFormLen,
		Logger:     log,
	}, loaded...)
	if err != nil {
		closeLoaded()
		return nil, err
	}
	return e, nil
}

// LoadModel opens the tokenizer and ONNX encoder of a registry entry from
// <modelsDir>/<pretrained id>/.
func LoadModel(spec models.Model, modelsDir, runtimeLib string, threads int) (local.Model, error) {
	dir := spec.Dir(modelsDir)

	tok, err := tokenizerutils.NewTokenizer(&tokenizerutils.NewTokenizerOpts{
		Dir:          dir,
		PretrainedID: spec.PretrainedID,
	})
	if err != nil {
		return local.Model{}, err
	}

	enc, err := onnx.New(onnx.Config{
		ModelPath:         filepath.Join(dir, modelFile),
		SharedLibraryPath: runtimeLib,
		Threads:           threads,
	})
	if err != nil {
		_ = tok.Close()
		return local.Model{}, err
	}

	return local.Model{Spec: spec, Tokenizer: tok, Encoder: enc}, nil
}

// Ensure NewEmbedder is an embeddings.Factory
var _ embeddings.Factory = NewEmbedder

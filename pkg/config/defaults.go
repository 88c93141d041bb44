package config

import (
	"github.com/papercomputeco/wembeddings/pkg/models"
	"github.com/papercomputeco/wembeddings/pkg/npz"
	"github.com/papercomputeco/wembeddings/pkg/segment"
)

const (
	defaultBatchSize = 64
	defaultDType     = "float16"
	defaultThreads   = 4

	defaultServerListen = ":8000"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Compute: ComputeConfig{
			Model:      models.DefaultModel,
			BatchSize:  defaultBatchSize,
			DType:      defaultDType,
			Threads:    defaultThreads,
			MaxFormLen: segment.DefaultMaxFormLen,
		},
		Output: OutputConfig{
			Compression: string(npz.Deflate),
		},
		Server: ServerConfig{
			Listen: defaultServerListen,
			DType:  defaultDType,
			Models: []string{models.DefaultModel},
		},
	}
}

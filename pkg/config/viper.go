package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/wembeddings/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the WEMBED_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (WEMBED_COMPUTE_MODEL, WEMBED_SERVER_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: WEMBED_COMPUTE_BATCH_SIZE, WEMBED_MODELS_DIR, etc.
	v.SetEnvPrefix("WEMBED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Compute
	v.SetDefault("compute.model", d.Compute.Model)
	v.SetDefault("compute.batch_size", d.Compute.BatchSize)
	v.SetDefault("compute.dtype", d.Compute.DType)
	v.SetDefault("compute.threads", d.Compute.Threads)
	v.SetDefault("compute.max_form_len", d.Compute.MaxFormLen)

	// Output
	v.SetDefault("output.compression", d.Output.Compression)

	// Models and runtime
	v.SetDefault("models.dir", d.Models.Dir)
	v.SetDefault("runtime.onnxruntime_lib", d.Runtime.OnnxRuntimeLib)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.dtype", d.Server.DType)
	v.SetDefault("server.models", d.Server.Models)

	// Client
	v.SetDefault("client.target", d.Client.Target)
}

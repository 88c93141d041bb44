package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent wembed configuration stored as config.toml
// in the .wembed/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Compute ComputeConfig `toml:"compute"`
	Output  OutputConfig  `toml:"output"`
	Models  ModelsConfig  `toml:"models"`
	Runtime RuntimeConfig `toml:"runtime"`
	Server  ServerConfig  `toml:"server"`
	Client  ClientConfig  `toml:"client"`
}

// ComputeConfig holds settings for "wembed compute".
type ComputeConfig struct {
	Model      string `toml:"model,omitempty"`
	BatchSize  uint   `toml:"batch_size,omitempty"`
	DType      string `toml:"dtype,omitempty"`
	Threads    uint   `toml:"threads,omitempty"`
	MaxFormLen uint   `toml:"max_form_len,omitempty"`
}

// OutputConfig holds .npz archive settings.
type OutputConfig struct {
	Compression string `toml:"compression,omitempty"`
}

// ModelsConfig locates exported model artifacts.
type ModelsConfig struct {
	// Dir holds one directory per pretrained id. Empty means the models/
	// directory inside the resolved .wembed/ directory.
	Dir string `toml:"dir,omitempty"`
}

// RuntimeConfig holds inference runtime settings.
type RuntimeConfig struct {
	OnnxRuntimeLib string `toml:"onnxruntime_lib,omitempty"`
}

// ServerConfig holds settings for "wembed serve".
type ServerConfig struct {
	Listen string   `toml:"listen,omitempty"`
	DType  string   `toml:"dtype,omitempty"`
	Models []string `toml:"models,omitempty"`
}

// ClientConfig holds settings for computing through a remote server.
// Target is a "host:port" address; empty computes locally.
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(key string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"compute.model": {
		get: func(c *Config) string { return c.Compute.Model },
		set: func(c *Config, v string) error { c.Compute.Model = v; return nil },
	},
	"compute.batch_size": uintKey("compute.batch_size", func(c *Config) *uint { return &c.Compute.BatchSize }),
	"compute.dtype": {
		get: func(c *Config) string { return c.Compute.DType },
		set: func(c *Config, v string) error { c.Compute.DType = v; return nil },
	},
	"compute.threads":      uintKey("compute.threads", func(c *Config) *uint { return &c.Compute.Threads }),
	"compute.max_form_len": uintKey("compute.max_form_len", func(c *Config) *uint { return &c.Compute.MaxFormLen }),
	"output.compression": {
		get: func(c *Config) string { return c.Output.Compression },
		set: func(c *Config, v string) error { c.Output.Compression = v; return nil },
	},
	"models.dir": {
		get: func(c *Config) string { return c.Models.Dir },
		set: func(c *Config, v string) error { c.Models.Dir = v; return nil },
	},
	"runtime.onnxruntime_lib": {
		get: func(c *Config) string { return c.Runtime.OnnxRuntimeLib },
		set: func(c *Config, v string) error { c.Runtime.OnnxRuntimeLib = v; return nil },
	},
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.dtype": {
		get: func(c *Config) string { return c.Server.DType },
		set: func(c *Config, v string) error { c.Server.DType = v; return nil },
	},
	"server.models": {
		get: func(c *Config) string { return strings.Join(c.Server.Models, ",") },
		set: func(c *Config, v string) error {
			c.Server.Models = nil
			for _, name := range strings.Split(v, ",") {
				if name = strings.TrimSpace(name); name != "" {
					c.Server.Models = append(c.Server.Models, name)
				}
			}
			return nil
		},
	},
	"client.target": {
		get: func(c *Config) string { return c.Client.Target },
		set: func(c *Config, v string) error { c.Client.Target = v; return nil },
	},
}

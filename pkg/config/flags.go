package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --model
// on both "wembed compute" and "wembed serve").
type Flag struct {
	// Name is the long flag name (e.g. "batch-size").
	Name string

	// Shorthand is the one-letter short flag (e.g. "b"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "compute.batch_size").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagModel          = "model"
	FlagBatchSize      = "batch-size"
	FlagDType          = "dtype"
	FlagThreads        = "threads"
	FlagMaxFormLen     = "max-form-len"
	FlagCompression    = "compression"
	FlagModelsDir      = "models-dir"
	FlagOnnxRuntimeLib = "onnxruntime-lib"
	FlagServer         = "server"
	FlagListen         = "listen"

	// The serve command reuses "dtype" and "model" as flag names
	// but binds them to the server section.
	FlagServeDType  = "serve-dtype"
	FlagServeModels = "serve-models"
)

// Flags is the registry shared by every wembed command.
var Flags = FlagSet{
	FlagModel: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "compute.model",
		Description: "Embedding model to use (see \"wembed models\")",
	},
	FlagBatchSize: {
		Name:        "batch-size",
		Shorthand:   "b",
		ViperKey:    "compute.batch_size",
		Description: "Number of sentences embedded per batch",
	},
	FlagDType: {
		Name:        "dtype",
		ViperKey:    "compute.dtype",
		Description: "Element type of stored embeddings (float16, float32, float64)",
	},
	FlagThreads: {
		Name:        "threads",
		Shorthand:   "t",
		ViperKey:    "compute.threads",
		Description: "Inference threads (intra- and inter-op)",
	},
	FlagMaxFormLen: {
		Name:        "max-form-len",
		ViperKey:    "compute.max_form_len",
		Description: "Maximum characters of a word that are tokenized",
	},
	FlagCompression: {
		Name:        "compression",
		ViperKey:    "output.compression",
		Description: "Archive entry compression (deflate, store)",
	},
	FlagModelsDir: {
		Name:        "models-dir",
		ViperKey:    "models.dir",
		Description: "Directory holding exported models (default: models/ in the config directory)",
	},
	FlagOnnxRuntimeLib: {
		Name:        "onnxruntime-lib",
		ViperKey:    "runtime.onnxruntime_lib",
		Description: "Path to the ONNX Runtime shared library",
	},
	FlagServer: {
		Name:        "server",
		Shorthand:   "s",
		ViperKey:    "client.target",
		Description: "Compute through a wembed server at host:port instead of locally",
	},
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "server.listen",
		Description: "Address for the embedding server to listen on",
	},
	FlagServeDType: {
		Name:        "dtype",
		ViperKey:    "server.dtype",
		Description: "Element type of returned embeddings (float16, float32, float64)",
	},
	FlagServeModels: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "server.models",
		Description: "Models to load and serve (repeatable)",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddStringSliceFlag registers a repeatable string flag on cmd from the given FlagSet.
func AddStringSliceFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *[]string) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultStringSlice(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringSliceVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringSliceVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// defaultStringSlice returns the default string slice for a viper key from NewDefaultConfig.
func defaultStringSlice(viperKey string) []string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetStringSlice(viperKey)
}

// Package computecmder provides the compute command, which embeds every word
// of a CoNLL-U file into an .npz archive.
package computecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/wembeddings/pkg/config"
	"github.com/papercomputeco/wembeddings/pkg/conllu"
	"github.com/papercomputeco/wembeddings/pkg/embeddings"
	"github.com/papercomputeco/wembeddings/pkg/logger"
	"github.com/papercomputeco/wembeddings/pkg/npy"
	"github.com/papercomputeco/wembeddings/pkg/npz"
)

// progressEvery is how many sentences pass between progress logs.
const progressEvery = 100

type computeCommander struct {
	factory embeddings.Factory

	input  string
	output string

	model          string
	batchSize      uint
	dtype          string
	threads        uint
	maxFormLen     uint
	compression    string
	server         string
	modelsDir      string
	onnxRuntimeLib string

	debug  bool
	stderr io.Writer
	logger *slog.Logger
}

var computeFlags = []string{
	config.FlagModel,
	config.FlagBatchSize,
	config.FlagDType,
	config.FlagThreads,
	config.FlagMaxFormLen,
	config.FlagCompression,
	config.FlagServer,
	config.FlagModelsDir,
	config.FlagOnnxRuntimeLib,
}

const computeLongDesc string = `Compute contextual word embeddings for a CoNLL-U file.

Every sentence of the input becomes one array in the output .npz archive,
stored as arr_0, arr_1, ... in input order, with one row per word.

Models are loaded from <models-dir>/<pretrained id>/ (model.onnx plus
tokenizer.json or vocab.txt). Pass --server to compute through a running
"wembed serve" instead.

Examples:
  wembed compute train.conllu train.npz
  wembed compute train.conllu train.npz --model xlm-roberta-base-last4 --dtype float32
  wembed compute train.conllu train.npz --server localhost:8000`

const computeShortDesc string = "Compute word embeddings for a CoNLL-U file"

func NewComputeCmd(factory embeddings.Factory) *cobra.Command {
	cmder := &computeCommander{factory: factory}

	cmd := &cobra.Command{
		Use:   "compute <input.conllu> <output.npz>",
		Short: computeShortDesc,
		Long:  computeLongDesc,
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.loadConfig(cmd, configDir)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.input = args[0]
			cmder.output = args[1]
			cmder.stderr = cmd.ErrOrStderr()

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddUintFlag(cmd, config.Flags, config.FlagBatchSize, &cmder.batchSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagDType, &cmder.dtype)
	config.AddUintFlag(cmd, config.Flags, config.FlagThreads, &cmder.threads)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxFormLen, &cmder.maxFormLen)
	config.AddStringFlag(cmd, config.Flags, config.FlagCompression, &cmder.compression)
	config.AddStringFlag(cmd, config.Flags, config.FlagServer, &cmder.server)
	config.AddStringFlag(cmd, config.Flags, config.FlagModelsDir, &cmder.modelsDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagOnnxRuntimeLib, &cmder.onnxRuntimeLib)

	return cmd
}

// loadConfig resolves every setting through flag > env > config.toml > default.
func (c *computeCommander) loadConfig(cmd *cobra.Command, configDir string) error {
	v, err := config.InitViper(configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, computeFlags)

	c.model = v.GetString("compute.model")
	c.batchSize = v.GetUint("compute.batch_size")
	c.dtype = v.GetString("compute.dtype")
	c.threads = v.GetUint("compute.threads")
	c.maxFormLen = v.GetUint("compute.max_form_len")
	c.compression = v.GetString("output.compression")
	c.server = v.GetString("client.target")
	c.onnxRuntimeLib = v.GetString("runtime.onnxruntime_lib")

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return err
	}
	c.modelsDir = cfger.ModelsDir(&config.Config{
		Models: config.ModelsConfig{Dir: v.GetString("models.dir")},
	})

	return nil
}

func (c *computeCommander) run(ctx context.Context) error {
	if c.stderr == nil {
		c.stderr = os.Stderr
	}
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(logger.FormatPretty),
		logger.WithWriter(c.stderr),
	)

	if c.batchSize == 0 {
		return errors.New("batch size must be positive")
	}
	dtype, err := npy.ParseDType(c.dtype)
	if err != nil {
		return err
	}
	compression, err := npz.ParseCompression(c.compression)
	if err != nil {
		return err
	}

	sentences, err := conllu.ReadFile(c.input)
	if err != nil {
		return err
	}
	c.logger.Info("loaded CoNLL-U file",
		"sentences", len(sentences),
		"words", conllu.Words(sentences),
	)

	embedder, err := c.factory(c.embedderOptions())
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer embedder.Close()

	w, err := npz.Create(c.output, npz.WithDType(dtype), npz.WithCompression(compression))
	if err != nil {
		return err
	}

	if err := c.embedAll(ctx, embedder, w, sentences); err != nil {
		_ = w.Close()
		_ = os.Remove(c.output)
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", c.output, err)
	}

	c.logger.Info("done, all embeddings saved", "output", c.output, "arrays", w.Len())
	return nil
}

func (c *computeCommander) embedderOptions() *embeddings.Options {
	o := &embeddings.Options{
		Provider:       embeddings.ProviderLocal,
		Models:         []string{c.model},
		ModelsDir:      c.modelsDir,
		OnnxRuntimeLib: c.onnxRuntimeLib,
		Threads:        int(c.threads),
		MaxFormLen:     int(c.maxFormLen),
		Logger:         c.logger,
	}
	if c.server != "" {
		o.Provider = embeddings.ProviderRemote
		o.Target = c.server
	}
	return o
}

func (c *computeCommander) embedAll(ctx context.Context, embedder embeddings.Embedder, w *npz.Writer, sentences []conllu.Sentence) error {
	batchSize := int(c.batchSize)
	for i := 0; i < len(sentences); i += batchSize {
		end := min(i+batchSize, len(sentences))
		batch := make([][]string, 0, end-i)
		for _, s := range sentences[i:end] {
			batch = append(batch, s)
		}

		out, err := embedder.Compute(ctx, c.model, batch)
		if err != nil {
			return err
		}
		if len(out) != len(batch) {
			return fmt.Errorf("%w: got %d arrays for %d sentences", embeddings.ErrEmbedding, len(out), len(batch))
		}

		for j, m := range out {
			if err := w.Append(m); err != nil {
				return fmt.Errorf("writing %s: %w", c.output, err)
			}
			if done := i + j + 1; done%progressEvery == 0 {
				c.logger.Info("processed sentences", "done", done, "total", len(sentences))
			}
		}
	}
	return nil
}

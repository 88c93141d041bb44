// Package servecmder provides the serve command, which runs the embedding
// HTTP server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/wembeddings/api"
	"github.com/papercomputeco/wembeddings/pkg/cliui"
	"github.com/papercomputeco/wembeddings/pkg/config"
	"github.com/papercomputeco/wembeddings/pkg/embeddings"
	"github.com/papercomputeco/wembeddings/pkg/logger"
	"github.com/papercomputeco/wembeddings/pkg/models"
	"github.com/papercomputeco/wembeddings/pkg/npy"
)

type ServeCommander struct {
	factory embeddings.Factory

	listen         string
	dtype          string
	models         []string
	threads        uint
	maxFormLen     uint
	modelsDir      string
	onnxRuntimeLib string
	logFile        string

	debug  bool
	stderr io.Writer
	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagServeDType,
	config.FlagServeModels,
	config.FlagThreads,
	config.FlagMaxFormLen,
	config.FlagModelsDir,
	config.FlagOnnxRuntimeLib,
}

const serveLongDesc string = `Run the wembed embedding server.

The server loads the given models once and answers POST / (or
POST /wembeddings) with {"model": ..., "sentences": [[...], ...]} JSON
bodies. The response is one NPY array per sentence, concatenated.
"wembed compute --server host:port" is its client.

Other routes:
  GET /ping      health check
  GET /models    registry listing, with the loaded models marked`

const serveShortDesc string = "Run the wembed embedding server"

func NewServeCmd(factory embeddings.Factory) *cobra.Command {
	cmder := &ServeCommander{factory: factory}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.loadConfig(cmd, configDir)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.stderr = cmd.ErrOrStderr()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagServeDType, &cmder.dtype)
	config.AddStringSliceFlag(cmd, config.Flags, config.FlagServeModels, &cmder.models)
	config.AddUintFlag(cmd, config.Flags, config.FlagThreads, &cmder.threads)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxFormLen, &cmder.maxFormLen)
	config.AddStringFlag(cmd, config.Flags, config.FlagModelsDir, &cmder.modelsDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagOnnxRuntimeLib, &cmder.onnxRuntimeLib)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *ServeCommander) loadConfig(cmd *cobra.Command, configDir string) error {
	v, err := config.InitViper(configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)

	c.listen = v.GetString("server.listen")
	c.dtype = v.GetString("server.dtype")
	c.models = v.GetStringSlice("server.models")
	c.threads = v.GetUint("compute.threads")
	c.maxFormLen = v.GetUint("compute.max_form_len")
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

func (c *ServeCommander) newLogger() (*slog.Logger, func(), error) {
	if c.stderr == nil {
		c.stderr = os.Stderr
	}
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithFormat(logger.FormatPretty),
		logger.WithWriter(c.stderr),
	)
	if c.logFile == "" {
		return console, func() {}, nil
	}

	file, closeFile, err := logger.NewFile(c.logFile,
		logger.WithDebug(c.debug),
		logger.WithComponent("serve"),
	)
	if err != nil {
		return nil, nil, err
	}
	return logger.Multi(console, file), func() { _ = closeFile() }, nil
}

func (c *ServeCommander) run(ctx context.Context) error {
	var (
		closeLog func()
		err      error
	)
	c.logger, closeLog, err = c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	dtype, err := npy.ParseDType(c.dtype)
	if err != nil {
		return err
	}
	if len(c.models) == 0 {
		return errors.New("at least one --model is required")
	}

	var embedder embeddings.Embedder
	err = cliui.Step(c.stderr, fmt.Sprintf("Loading %s", strings.Join(c.models, ", ")), func() error {
		var err error
		embedder, err = c.factory(&embeddings.Options{
			Provider:       embeddings.ProviderLocal,
			Models:         c.models,
			ModelsDir:      c.modelsDir,
			OnnxRuntimeLib: c.onnxRuntimeLib,
			Threads:        int(c.threads),
			MaxFormLen:     int(c.maxFormLen),
			Logger:         c.logger,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer embedder.Close()

	server := api.NewServer(api.Config{
		ListenAddr: c.listen,
		DType:      dtype,
		Registry:   models.Default(),
		Loaded:     c.models,
	}, embedder, c.logger)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		c.logger.Info("context done, shutting down")
	}

	return server.Shutdown()
}

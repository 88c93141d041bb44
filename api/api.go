package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/wembeddings/pkg/embeddings"
	"github.com/papercomputeco/wembeddings/pkg/logger"
	"github.com/papercomputeco/wembeddings/pkg/models"
)

// Server serves word embeddings over HTTP.
type Server struct {
	config   Config
	embedder embeddings.Embedder
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server.
// The embedder is injected so the serve command owns loading and closing it.
func NewServer(config Config, embedder embeddings.Embedder, log *slog.Logger) *Server {
	if config.Registry == nil {
		config.Registry = models.Default()
	}
	if config.BodyLimit == 0 {
		config.BodyLimit = DefaultBodyLimit
	}
	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.BodyLimit,
	})

	s := &Server{
		config:   config,
		embedder: embedder,
		logger:   log,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/models", s.handleListModels)
	app.Post("/", s.handleEmbed)
	app.Post("/wembeddings", s.handleEmbed)

	return s
}

// App exposes the underlying fiber app, e.g. for mounting under net/http.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"dtype", s.config.DType.String(),
		"models", s.config.Loaded,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

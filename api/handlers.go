package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/wembeddings/pkg/models"
	"github.com/papercomputeco/wembeddings/pkg/npy"
)

// RequestIDHeader carries the per-request UUID on every embedding response.
const RequestIDHeader = "X-Request-Id"

// EmbedRequest is the body of an embedding request.
type EmbedRequest struct {
	Model     string     `json:"model"`
	Sentences [][]string `json:"sentences"`
}

// ErrorResponse is returned as JSON on failed requests.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ModelResponse describes one registry entry.
type ModelResponse struct {
	Name         string `json:"name"`
	PretrainedID string `json:"pretrained_id"`
	LayerStart   int    `json:"layer_start"`
	LayerEnd     int    `json:"layer_end"`
	Loaded       bool   `json:"loaded"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListModels lists the registry and which models this server loaded.
func (s *Server) handleListModels(c *fiber.Ctx) error {
	loaded := make(map[string]bool, len(s.config.Loaded))
	for _, name := range s.config.Loaded {
		loaded[name] = true
	}

	resp := []ModelResponse{}
	for _, m := range s.config.Registry.Models() {
		resp = append(resp, ModelResponse{
			Name:         m.Name,
			PretrainedID: m.PretrainedID,
			LayerStart:   m.LayerStart,
			LayerEnd:     m.LayerEnd,
			Loaded:       loaded[m.Name],
		})
	}
	return c.JSON(resp)
}

// handleEmbed computes embeddings and writes one NPY array per sentence.
func (s *Server) handleEmbed(c *fiber.Ctx) error {
	requestID := uuid.NewString()
	log := s.logger.With("request_id", requestID)
	start := time.Now()

	var req EmbedRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		log.Warn("invalid embedding request", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body", RequestID: requestID})
	}
	if req.Model == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "model is required", RequestID: requestID})
	}

	out, err := s.embedder.Compute(c.UserContext(), req.Model, req.Sentences)
	if errors.Is(err, models.ErrUnknownModel) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error(), RequestID: requestID})
	}
	if err != nil {
		log.Error("computing embeddings", "model", req.Model, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to compute embeddings", RequestID: requestID})
	}

	var buf bytes.Buffer
	for _, m := range out {
		if err := npy.Write(&buf, m, s.config.DType); err != nil {
			log.Error("encoding embeddings", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to encode embeddings", RequestID: requestID})
		}
	}

	log.Info("computed embeddings",
		"model", req.Model,
		"sentences", len(req.Sentences),
		"bytes", buf.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	c.Set(RequestIDHeader, requestID)
	return c.Send(buf.Bytes())
}

package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/wembeddings/pkg/logger"
	"github.com/papercomputeco/wembeddings/pkg/models"
	"github.com/papercomputeco/wembeddings/pkg/npy"
	testutils "github.com/papercomputeco/wembeddings/pkg/utils/test"
)

func postJSON(server *Server, path string, body any) *http.Response {
	raw, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())

	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func readError(resp *http.Response) ErrorResponse {
	var out ErrorResponse
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, &out)).To(Succeed())
	return out
}

var _ = Describe("Server", func() {
	var (
		server   *Server
		embedder *testutils.MockEmbedder
	)

	BeforeEach(func() {
		embedder = testutils.NewMockEmbedder(models.DefaultModel)
		server = NewServer(Config{
			ListenAddr: ":0",
			Loaded:     []string{models.DefaultModel},
		}, embedder, logger.Nop())
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, err := http.NewRequest(http.MethodGet, "/ping", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(`"pong"`))
		})
	})

	Describe("GET /models", func() {
		It("lists the registry and marks loaded models", func() {
			req, err := http.NewRequest(http.MethodGet, "/models", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var result []ModelResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &result)).To(Succeed())

			Expect(result).To(HaveLen(len(models.Default().Names())))
			for _, m := range result {
				Expect(m.Loaded).To(Equal(m.Name == models.DefaultModel))
				Expect(m.PretrainedID).NotTo(BeEmpty())
			}
		})
	})

	Describe("POST /", func() {
		It("streams one array per sentence in order", func() {
			resp := postJSON(server, "/", EmbedRequest{
				Model:     models.DefaultModel,
				Sentences: [][]string{{"The", "cat", "sat"}, {"Hi"}},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(resp.Header.Get(fiber.HeaderContentType)).To(Equal(fiber.MIMEOctetStream))

			_, err := uuid.Parse(resp.Header.Get(RequestIDHeader))
			Expect(err).NotTo(HaveOccurred())

			body := bufio.NewReader(resp.Body)
			first, dtype, err := npy.Read(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(dtype).To(Equal(npy.Float16))
			Expect(first.Shape()).To(Equal([]int{3, 2}))
			Expect(first.Row(2)).To(Equal([]float32{2, 3}))

			second, _, err := npy.Read(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Shape()).To(Equal([]int{1, 2}))

			_, err = body.ReadByte()
			Expect(err).To(Equal(io.EOF))
		})

		It("serves the /wembeddings alias", func() {
			resp := postJSON(server, "/wembeddings", EmbedRequest{
				Model:     models.DefaultModel,
				Sentences: [][]string{{"a"}},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})

		It("uses the configured dtype", func() {
			server = NewServer(Config{DType: npy.Float32}, embedder, logger.Nop())
			resp := postJSON(server, "/", EmbedRequest{
				Model:     models.DefaultModel,
				Sentences: [][]string{{"a"}},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			_, dtype, err := npy.Read(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(dtype).To(Equal(npy.Float32))
		})

		It("returns an empty body for an empty batch", func() {
			resp := postJSON(server, "/", EmbedRequest{Model: models.DefaultModel, Sentences: [][]string{}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(BeEmpty())
		})

		It("accepts ASCII-escaped words", func() {
			req, err := http.NewRequest(http.MethodPost, "/",
				bytes.NewReader([]byte(`{"model": "`+models.DefaultModel+`", "sentences": [["\u017elu\u0165"]]}`)))
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(embedder.Sentences).To(Equal([][]string{{"žluť"}}))
		})

		It("returns 400 for an unknown model", func() {
			resp := postJSON(server, "/", EmbedRequest{Model: "nope", Sentences: [][]string{{"a"}}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(readError(resp).Error).To(ContainSubstring("unknown model"))
		})

		It("returns 400 when the model is missing", func() {
			resp := postJSON(server, "/", map[string]any{"sentences": [][]string{{"a"}}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 for a malformed body", func() {
			req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("not json")))
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(readError(resp).RequestID).NotTo(BeEmpty())
		})

		It("returns 500 when computation fails", func() {
			embedder.Err = errors.New("boom")
			resp := postJSON(server, "/", EmbedRequest{Model: models.DefaultModel, Sentences: [][]string{{"a"}}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
			Expect(readError(resp).Error).To(Equal("failed to compute embeddings"))
		})
	})
})

package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/wembeddings/pkg/logger"
)

func decodeLines(buf []byte) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(buf)), "\n") {
		var m map[string]any
		Expect(json.Unmarshal([]byte(line), &m)).To(Succeed())
		out = append(out, m)
	}
	return out
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("writes text records at info level by default", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("loaded model", "model", "xlm-roberta-base-last4")
			l.Debug("computed embeddings")

			Expect(buf.String()).To(ContainSubstring("msg=\"loaded model\""))
			Expect(buf.String()).To(ContainSubstring("model=xlm-roberta-base-last4"))
			Expect(buf.String()).NotTo(ContainSubstring("computed embeddings"))
		})

		It("emits debug records when debug is on", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))
			l.Debug("computed embeddings", "batch", 64)

			Expect(buf.String()).To(ContainSubstring("computed embeddings"))
		})

		It("renders JSON", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatJSON))
			l.Info("processed sentences", "done", 100, "total", 250)

			rec := decodeLines(buf.Bytes())[0]
			Expect(rec["msg"]).To(Equal("processed sentences"))
			Expect(rec["done"]).To(BeNumerically("==", 100))
			Expect(rec["total"]).To(BeNumerically("==", 250))
		})

		It("renders pretty output", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatPretty))
			l.Info("done, all embeddings saved")

			Expect(buf.String()).To(ContainSubstring("done, all embeddings saved"))
		})

		It("tags records with the component", func() {
			var buf bytes.Buffer
			l := logger.New(
				logger.WithWriter(&buf),
				logger.WithFormat(logger.FormatJSON),
				logger.WithComponent("serve"),
			)
			l.Info("starting API server")

			Expect(decodeLines(buf.Bytes())[0]["component"]).To(Equal("serve"))
		})

		It("adds the caller when asked", func() {
			var buf bytes.Buffer
			l := logger.New(
				logger.WithWriter(&buf),
				logger.WithFormat(logger.FormatJSON),
				logger.WithCaller(true),
			)
			l.Info("here")

			Expect(decodeLines(buf.Bytes())[0]).To(HaveKey(slog.SourceKey))
		})

		It("ignores a nil writer", func() {
			Expect(logger.New(logger.WithWriter(nil)).Handler()).NotTo(BeNil())
		})
	})

	Describe("Format", func() {
		It("parses the flag spellings", func() {
			for _, f := range []logger.Format{logger.FormatText, logger.FormatPretty, logger.FormatJSON} {
				parsed, err := logger.ParseFormat(f.String())
				Expect(err).NotTo(HaveOccurred())
				Expect(parsed).To(Equal(f))
			}
		})

		It("rejects unknown formats", func() {
			_, err := logger.ParseFormat("xml")
			Expect(err).To(MatchError(ContainSubstring("xml")))
		})
	})

	Describe("NewFile", func() {
		It("appends JSON records to the file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "serve.log")
			Expect(os.WriteFile(path, []byte("{\"msg\":\"earlier\"}\n"), 0o644)).To(Succeed())

			l, closeFile, err := logger.NewFile(path, logger.WithFormat(logger.FormatPretty))
			Expect(err).NotTo(HaveOccurred())
			l.Info("computed embeddings", "sentences", 2)
			Expect(closeFile()).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			recs := decodeLines(data)
			Expect(recs).To(HaveLen(2))
			Expect(recs[0]["msg"]).To(Equal("earlier"))
			Expect(recs[1]["msg"]).To(Equal("computed embeddings"))
		})

		It("fails when the directory does not exist", func() {
			_, _, err := logger.NewFile(filepath.Join(GinkgoT().TempDir(), "missing", "serve.log"))
			Expect(err).To(MatchError(ContainSubstring("opening log file")))
		})
	})

	Describe("Nop", func() {
		It("is disabled at every level", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() {
				l.With("key", "value").WithGroup("g").Error("msg")
			}).NotTo(Panic())
		})
	})

	Describe("Multi", func() {
		It("writes every record to all loggers", func() {
			var console, file bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&console), logger.WithFormat(logger.FormatPretty)),
				logger.New(logger.WithWriter(&file), logger.WithFormat(logger.FormatJSON)),
			)
			multi.Info("starting API server", "listen", ":8000")

			Expect(console.String()).To(ContainSubstring("starting API server"))
			Expect(decodeLines(file.Bytes())[0]["listen"]).To(Equal(":8000"))
		})

		It("respects each logger's level", func() {
			var quiet, verbose bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&quiet)),
				logger.New(logger.WithWriter(&verbose), logger.WithDebug(true)),
			)
			multi.Debug("computed embeddings")

			Expect(quiet.String()).To(BeEmpty())
			Expect(verbose.String()).To(ContainSubstring("computed embeddings"))
		})

		It("skips nil loggers", func() {
			var buf bytes.Buffer
			multi := logger.Multi(nil, logger.New(logger.WithWriter(&buf)))
			multi.Info("hello")

			Expect(buf.String()).To(ContainSubstring("hello"))
		})

		It("carries attributes and groups to every logger", func() {
			var a, b bytes.Buffer
			multi := logger.Multi(
				logger.New(logger.WithWriter(&a), logger.WithFormat(logger.FormatJSON)),
				logger.New(logger.WithWriter(&b), logger.WithFormat(logger.FormatJSON)),
			)
			multi.With("request_id", "abc").WithGroup("batch").Info("computed embeddings", "sentences", 3)

			for _, buf := range []*bytes.Buffer{&a, &b} {
				rec := decodeLines(buf.Bytes())[0]
				Expect(rec["request_id"]).To(Equal("abc"))
				Expect(rec["batch"]).To(HaveKeyWithValue("sentences", BeNumerically("==", 3)))
			}
		})

		It("keeps writing when one handler fails", func() {
			var buf bytes.Buffer
			ok := logger.New(logger.WithWriter(&buf))
			multi := logger.Multi(slog.New(failingHandler{}), ok)

			err := multi.Handler().Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still here", 0))
			Expect(err).To(MatchError("disk full"))
			Expect(buf.String()).To(ContainSubstring("still here"))
		})
	})
})

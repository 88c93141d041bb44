package onnx_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/wembeddings/pkg/encoder"
	"github.com/papercomputeco/wembeddings/pkg/encoder/onnx"
)

var _ = Describe("Encoder", func() {
	It("requires a model path", func() {
		_, err := onnx.New(onnx.Config{})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("model path"))
	})

	Context("with an exported model", func() {
		var (
			enc *onnx.Encoder
		)

		BeforeEach(func() {
			modelPath := os.Getenv("WEMBED_TEST_ONNX_MODEL")
			if modelPath == "" {
				Skip("WEMBED_TEST_ONNX_MODEL not set")
			}

			var err error
			enc, err = onnx.New(onnx.Config{
				ModelPath:         modelPath,
				SharedLibraryPath: os.Getenv("WEMBED_ONNXRUNTIME_LIB"),
				Threads:           1,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			if enc != nil {
				Expect(enc.Close()).To(Succeed())
			}
		})

		It("returns stacked hidden states for every row", func() {
			in := &encoder.Input{
				IDs:     [][]int64{{101, 1996, 4937, 102}, {101, 2938, 102, 0}},
				Lengths: []int{4, 3},
			}

			hs, err := enc.HiddenStates(context.Background(), in)
			Expect(err).NotTo(HaveOccurred())
			Expect(hs.Rows).To(Equal(2))
			Expect(hs.Width).To(Equal(4))
			Expect(hs.Layers).To(BeNumerically(">", 1))
			Expect(hs.Data).To(HaveLen(hs.Layers * hs.Rows * hs.Width * hs.Hidden))
		})
	})
})

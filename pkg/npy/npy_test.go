package npy_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/wembeddings/pkg/npy"
	"github.com/papercomputeco/wembeddings/pkg/tensor"
)

func sampleMatrix(rows, cols int) *tensor.Matrix {
	m := tensor.NewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = float32(math.Sin(float64(i))) * 3
	}
	return m
}

var _ = Describe("ParseDType", func() {
	DescribeTable("accepts numpy names",
		func(name string, want npy.DType) {
			got, err := npy.ParseDType(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("float16", "float16", npy.Float16),
		Entry("f4", "f4", npy.Float32),
		Entry("<f8", "<f8", npy.Float64),
		Entry("upper case", "FLOAT32", npy.Float32),
	)

	It("rejects integer dtypes", func() {
		_, err := npy.ParseDType("int32")
		Expect(errors.Is(err, npy.ErrUnsupportedDType)).To(BeTrue())
	})
})

var _ = Describe("Write", func() {
	It("writes a 64 byte aligned version 1.0 header", func() {
		b, err := npy.Marshal(sampleMatrix(3, 768), npy.Float16)
		Expect(err).NotTo(HaveOccurred())

		Expect(b[:6]).To(Equal([]byte("\x93NUMPY")))
		Expect(b[6:8]).To(Equal([]byte{1, 0}))

		hlen := int(binary.LittleEndian.Uint16(b[8:10]))
		Expect((10 + hlen) % 64).To(Equal(0))

		hdr := string(b[10 : 10+hlen])
		Expect(hdr).To(ContainSubstring("'descr': '<f2'"))
		Expect(hdr).To(ContainSubstring("'fortran_order': False"))
		Expect(hdr).To(ContainSubstring("'shape': (3, 768)"))
		Expect(hdr).To(HaveSuffix("\n"))

		Expect(b).To(HaveLen(10 + hlen + 3*768*2))
	})
})

var _ = Describe("Read", func() {
	It("round trips float32 exactly", func() {
		m := sampleMatrix(4, 5)
		b, err := npy.Marshal(m, npy.Float32)
		Expect(err).NotTo(HaveOccurred())

		got, dtype, err := npy.Unmarshal(b)
		Expect(err).NotTo(HaveOccurred())
		Expect(dtype).To(Equal(npy.Float32))
		Expect(got.Shape()).To(Equal([]int{4, 5}))
		Expect(got.Data).To(Equal(m.Data))
	})

	It("round trips float64 exactly", func() {
		m := sampleMatrix(2, 3)
		b, err := npy.Marshal(m, npy.Float64)
		Expect(err).NotTo(HaveOccurred())

		got, dtype, err := npy.Unmarshal(b)
		Expect(err).NotTo(HaveOccurred())
		Expect(dtype).To(Equal(npy.Float64))
		Expect(got.Data).To(Equal(m.Data))
	})

	It("round trips float16 within half precision", func() {
		m := sampleMatrix(3, 16)
		b, err := npy.Marshal(m, npy.Float16)
		Expect(err).NotTo(HaveOccurred())

		got, dtype, err := npy.Unmarshal(b)
		Expect(err).NotTo(HaveOccurred())
		Expect(dtype).To(Equal(npy.Float16))
		for i, v := range m.Data {
			Expect(got.Data[i]).To(BeNumerically("~", v, 4e-3))
		}
	})

	It("handles arrays with zero rows", func() {
		b, err := npy.Marshal(tensor.NewMatrix(0, 8), npy.Float32)
		Expect(err).NotTo(HaveOccurred())

		got, _, err := npy.Unmarshal(b)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Shape()).To(Equal([]int{0, 8}))
	})

	It("reads concatenated arrays one at a time", func() {
		var buf bytes.Buffer
		first, second := sampleMatrix(1, 4), sampleMatrix(2, 4)
		Expect(npy.Write(&buf, first, npy.Float32)).To(Succeed())
		Expect(npy.Write(&buf, second, npy.Float32)).To(Succeed())

		a, _, err := npy.Read(&buf)
		Expect(err).NotTo(HaveOccurred())
		b, _, err := npy.Read(&buf)
		Expect(err).NotTo(HaveOccurred())

		Expect(a.Data).To(Equal(first.Data))
		Expect(b.Data).To(Equal(second.Data))
		Expect(buf.Len()).To(BeZero())
	})

	It("reads fortran ordered arrays into row-major order", func() {
		dict := "{'descr': '<f4', 'fortran_order': True, 'shape': (2, 3), }\n"
		var buf bytes.Buffer
		buf.WriteString("\x93NUMPY")
		buf.Write([]byte{1, 0})
		Expect(binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))).To(Succeed())
		buf.WriteString(dict)
		// column-major storage of [[1 2 3] [4 5 6]]
		for _, v := range []float32{1, 4, 2, 5, 3, 6} {
			Expect(binary.Write(&buf, binary.LittleEndian, v)).To(Succeed())
		}

		got, _, err := npy.Read(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Data).To(Equal([]float32{1, 2, 3, 4, 5, 6}))
	})

	It("rejects streams without the magic string", func() {
		_, _, err := npy.Unmarshal([]byte("PK\x03\x04 not an array"))
		Expect(errors.Is(err, npy.ErrBadMagic)).To(BeTrue())
	})

	It("rejects arrays that are not two dimensional", func() {
		dict := "{'descr': '<f4', 'fortran_order': False, 'shape': (3,), }\n"
		var buf bytes.Buffer
		buf.WriteString("\x93NUMPY")
		buf.Write([]byte{1, 0})
		Expect(binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))).To(Succeed())
		buf.WriteString(dict)

		_, _, err := npy.Read(&buf)
		Expect(errors.Is(err, npy.ErrUnsupportedShape)).To(BeTrue())
	})

	DescribeTable("rejects shapes whose byte size overflows",
		func(descr, shape string) {
			dict := "{'descr': '" + descr + "', 'fortran_order': False, 'shape': " + shape + ", }\n"
			var buf bytes.Buffer
			buf.WriteString("\x93NUMPY")
			buf.Write([]byte{1, 0})
			Expect(binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))).To(Succeed())
			buf.WriteString(dict)

			var err error
			Expect(func() { _, _, err = npy.Unmarshal(buf.Bytes()) }).NotTo(Panic())
			Expect(errors.Is(err, npy.ErrBadHeader)).To(BeTrue())
		},
		Entry("product wrapping to zero", "<f4", "(4611686018427387904, 4)"),
		Entry("product wrapping negative", "<f4", "(2305843009213693952, 3)"),
		Entry("element size tipping it over", "<f8", "(1152921504606846976, 2)"),
	)

	It("still accepts a large but representable zero-row shape", func() {
		dict := "{'descr': '<f2', 'fortran_order': False, 'shape': (0, 4611686018427387904), }\n"
		var buf bytes.Buffer
		buf.WriteString("\x93NUMPY")
		buf.Write([]byte{1, 0})
		Expect(binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))).To(Succeed())
		buf.WriteString(dict)

		m, _, err := npy.Read(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Rows).To(Equal(0))
	})
})

var _ = Describe("tensor.FromData shape checks", func() {
	It("rejects shapes whose element count overflows", func() {
		_, err := tensor.FromData(1<<62, 4, nil)
		Expect(err).To(MatchError(ContainSubstring("invalid matrix shape")))
	})
})

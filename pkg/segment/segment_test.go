package segment_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/wembeddings/pkg/segment"
	"github.com/papercomputeco/wembeddings/pkg/tensor"
)

const (
	cls = 101
	sep = 102
)

// runeTokenizer emits one subword per rune, with the rune as its ID.
type runeTokenizer struct{}

func (runeTokenizer) Encode(word string) ([]int64, error) {
	var ids []int64
	for _, r := range word {
		ids = append(ids, int64(r))
	}
	return ids, nil
}

func (runeTokenizer) Wrap(ids []int64) []int64 {
	out := append([]int64{cls}, ids...)
	return append(out, sep)
}

func (runeTokenizer) Close() error { return nil }

// contextFree embeds every position by its subword ID alone, so splitting a
// sentence cannot change any word vector.
func contextFree(b *segment.Batch, hidden int) *tensor.Tensor3 {
	t := tensor.NewTensor3(b.NumParts(), b.Width, hidden)
	for p, row := range b.Subwords {
		for i, id := range row {
			v := t.Vector(p, i)
			for h := range v {
				v[h] = float32(id + int64(h)*1000)
			}
		}
	}
	return t
}

func words(n int, w string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = w
	}
	return out
}

var _ = Describe("Build", func() {
	It("pads subwords with zero and segments with the sentinel", func() {
		b, err := segment.New(runeTokenizer{}).Build([][]string{{"ab", "c"}, {"d"}})
		Expect(err).NotTo(HaveOccurred())

		Expect(b.NumParts()).To(Equal(2))
		Expect(b.Width).To(Equal(5))
		Expect(b.MaxSentenceLen).To(Equal(2))
		Expect(b.Subwords).To(Equal([][]int64{
			{cls, 'a', 'b', 'c', sep},
			{cls, 'd', sep, 0, 0},
		}))
		Expect(b.Segments).To(Equal([][]int32{
			{0, 0, 1, 2},
			{0, 2, 2, 2},
		}))
		Expect(b.Lengths).To(Equal([]int{5, 3}))
		Expect(b.Parts).To(Equal([][]int{{2}, {1}}))
	})

	It("splits sentences that overflow the subword budget", func() {
		b, err := segment.New(runeTokenizer{}, segment.WithMaxSubwords(4)).
			Build([][]string{{"ab", "cd", "e"}})
		Expect(err).NotTo(HaveOccurred())

		Expect(b.Parts).To(Equal([][]int{{2, 1}}))
		Expect(b.Subwords).To(Equal([][]int64{
			{cls, 'a', 'b', 'c', 'd', sep},
			{cls, 'e', sep, 0, 0, 0},
		}))
		Expect(b.Segments[1]).To(Equal([]int32{0, 3, 3, 3, 3}))
	})

	It("gives an oversized word a part of its own", func() {
		b, err := segment.New(runeTokenizer{}, segment.WithMaxSubwords(3), segment.WithMaxFormLen(0)).
			Build([][]string{{"x", "abcdef", "y"}})
		Expect(err).NotTo(HaveOccurred())

		Expect(b.Parts).To(Equal([][]int{{1, 1, 1}}))
		Expect(b.Subwords[1][:5]).To(Equal([]int64{cls, 'a', 'b', 'c', sep}))
	})

	It("truncates words to the max form length", func() {
		b, err := segment.New(runeTokenizer{}, segment.WithMaxFormLen(2)).
			Build([][]string{{"abcdef"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Subwords[0]).To(Equal([]int64{cls, 'a', 'b', sep}))
	})

	It("truncates by runes, not bytes", func() {
		b, err := segment.New(runeTokenizer{}, segment.WithMaxFormLen(2)).
			Build([][]string{{"žluť"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Subwords[0]).To(Equal([]int64{cls, 'ž', 'l', sep}))
	})

	It("splits a 600 word sentence into at least two parts", func() {
		b, err := segment.New(runeTokenizer{}).Build([][]string{words(600, "a")})
		Expect(err).NotTo(HaveOccurred())

		Expect(len(b.Parts[0])).To(BeNumerically(">=", 2))
		Expect(b.Parts[0]).To(Equal([]int{510, 90}))
		Expect(b.Width).To(Equal(512))
	})

	It("keeps empty sentences as boundary-only parts", func() {
		b, err := segment.New(runeTokenizer{}).Build([][]string{{}, {"a"}})
		Expect(err).NotTo(HaveOccurred())

		Expect(b.Parts).To(Equal([][]int{{0}, {1}}))
		Expect(b.Subwords[0]).To(Equal([]int64{cls, sep, 0}))
	})
})

var _ = Describe("Pool", func() {
	It("averages subwords per word and drops the sentinel bucket", func() {
		b, err := segment.New(runeTokenizer{}).Build([][]string{{"ab", "c"}, {"d"}})
		Expect(err).NotTo(HaveOccurred())

		pooled, err := b.Pool(contextFree(b, 2))
		Expect(err).NotTo(HaveOccurred())
		Expect(pooled.D0).To(Equal(2))
		Expect(pooled.D1).To(Equal(2))

		Expect(pooled.Vector(0, 0)).To(Equal([]float32{97.5, 1097.5}))
		Expect(pooled.Vector(0, 1)).To(Equal([]float32{99, 1099}))
		Expect(pooled.Vector(1, 0)).To(Equal([]float32{100, 1100}))
		Expect(pooled.Vector(1, 1)).To(Equal([]float32{0, 0}))
	})

	It("leaves words without subwords at zero", func() {
		b, err := segment.New(runeTokenizer{}).Build([][]string{{"a", "", "b"}})
		Expect(err).NotTo(HaveOccurred())

		pooled, err := b.Pool(contextFree(b, 1))
		Expect(err).NotTo(HaveOccurred())
		Expect(pooled.Vector(0, 1)).To(Equal([]float32{0}))
		Expect(pooled.Vector(0, 2)).To(Equal([]float32{'b'}))
	})

	It("rejects embeddings that do not match the batch", func() {
		b, err := segment.New(runeTokenizer{}).Build([][]string{{"a"}})
		Expect(err).NotTo(HaveOccurred())

		_, err = b.Pool(tensor.NewTensor3(2, b.Width, 4))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Reassemble", func() {
	It("returns exactly one row per word", func() {
		sentences := [][]string{words(600, "a"), {"The", "cat", "sat"}, {}, words(7, "xy")}
		b, err := segment.New(runeTokenizer{}).Build(sentences)
		Expect(err).NotTo(HaveOccurred())

		pooled, err := b.Pool(contextFree(b, 8))
		Expect(err).NotTo(HaveOccurred())

		out, err := b.Reassemble(pooled)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(len(sentences)))
		for i, s := range sentences {
			Expect(out[i].Rows).To(Equal(len(s)))
			Expect(out[i].Cols).To(Equal(8))
		}
	})

	It("makes splitting transparent for context-free encoders", func() {
		sentence := strings.Fields("the quick brown fox jumps over the lazy dog again and again")

		whole, err := segment.New(runeTokenizer{}).Build([][]string{sentence})
		Expect(err).NotTo(HaveOccurred())
		split, err := segment.New(runeTokenizer{}, segment.WithMaxSubwords(9)).Build([][]string{sentence})
		Expect(err).NotTo(HaveOccurred())
		Expect(len(split.Parts[0])).To(BeNumerically(">", 1))

		embed := func(b *segment.Batch) *tensor.Matrix {
			pooled, err := b.Pool(contextFree(b, 4))
			Expect(err).NotTo(HaveOccurred())
			out, err := b.Reassemble(pooled)
			Expect(err).NotTo(HaveOccurred())
			return out[0]
		}

		Expect(embed(split).Data).To(Equal(embed(whole).Data))
	})

	It("does not leak rows across sentences", func() {
		b, err := segment.New(runeTokenizer{}, segment.WithMaxSubwords(2)).
			Build([][]string{{"a", "b", "c"}, {"d", "e"}})
		Expect(err).NotTo(HaveOccurred())

		pooled, err := b.Pool(contextFree(b, 1))
		Expect(err).NotTo(HaveOccurred())
		out, err := b.Reassemble(pooled)
		Expect(err).NotTo(HaveOccurred())

		Expect(out[0].Data).To(Equal([]float32{'a', 'b', 'c'}))
		Expect(out[1].Data).To(Equal([]float32{'d', 'e'}))
	})
})

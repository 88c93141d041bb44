package wordpiece_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/wembeddings/pkg/tokenizer/wordpiece"
)

// IDs are line numbers.
var testVocab = []string{
	"[PAD]",  // 0
	"[UNK]",  // 1
	"[CLS]",  // 2
	"[SEP]",  // 3
	"the",    // 4
	"cat",    // 5
	"sat",    // 6
	"un",     // 7
	"##aff",  // 8
	"##able", // 9
	"don",    // 10
	"'",      // 11
	"t",      // 12
	"cafe",   // 13
	"中",      // 14
	"文",      // 15
	"Cat",    // 16
	",",      // 17
}

func newTokenizer(lowercase bool) *wordpiece.Tokenizer {
	tok, err := wordpiece.New(strings.NewReader(strings.Join(testVocab, "\n")), wordpiece.Config{Lowercase: lowercase})
	Expect(err).NotTo(HaveOccurred())
	return tok
}

var _ = Describe("Tokenizer", func() {
	Describe("Encode", func() {
		var tok *wordpiece.Tokenizer

		BeforeEach(func() {
			tok = newTokenizer(true)
		})

		DescribeTable("splits words into subwords",
			func(word string, want []int64) {
				ids, err := tok.Encode(word)
				Expect(err).NotTo(HaveOccurred())
				Expect(ids).To(Equal(want))
			},
			Entry("whole word", "cat", []int64{5}),
			Entry("continuation pieces", "unaffable", []int64{7, 8, 9}),
			Entry("lowercases", "The", []int64{4}),
			Entry("strips accents", "Café", []int64{13}),
			Entry("splits punctuation", "don't", []int64{10, 11, 12}),
			Entry("splits CJK characters", "中文", []int64{14, 15}),
			Entry("trailing punctuation", "cat,", []int64{5, 17}),
			Entry("drops control characters", "c\u0000at\u200b", []int64{5}),
			Entry("unknown word", "dog", []int64{1}),
			Entry("unknown continuation", "unaffablex", []int64{1}),
		)

		It("maps overlong tokens to [UNK]", func() {
			ids, err := tok.Encode(strings.Repeat("a", 101))
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]int64{1}))
		})

		It("returns no subwords for empty or whitespace words", func() {
			ids, err := tok.Encode(" \t")
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(BeEmpty())
		})
	})

	It("keeps case for cased vocabularies", func() {
		tok := newTokenizer(false)
		ids, err := tok.Encode("Cat")
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]int64{16}))
	})

	It("wraps parts with [CLS] and [SEP]", func() {
		tok := newTokenizer(true)
		Expect(tok.Wrap([]int64{5, 6})).To(Equal([]int64{2, 5, 6, 3}))
		Expect(tok.Wrap(nil)).To(Equal([]int64{2, 3}))
	})

	It("requires the special tokens", func() {
		_, err := wordpiece.New(strings.NewReader("[PAD]\n[UNK]\nthe\n"), wordpiece.Config{})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("[CLS]"))
	})

	It("loads vocab.txt from disk", func() {
		dir, err := os.MkdirTemp("", "wordpiece-test-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "vocab.txt")
		Expect(os.WriteFile(path, []byte(strings.Join(testVocab, "\n")+"\n"), 0o600)).To(Succeed())

		tok, err := wordpiece.NewFromFile(path, wordpiece.Config{Lowercase: true})
		Expect(err).NotTo(HaveOccurred())
		defer tok.Close()

		ids, err := tok.Encode("sat")
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(Equal([]int64{6}))
	})
})

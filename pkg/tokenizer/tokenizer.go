// Package tokenizer defines the subword tokenizer contract used to turn words
// into model input IDs.
package tokenizer

// Tokenizer converts single words into subword IDs of a pretrained
// vocabulary.
type Tokenizer interface {
	// Encode tokenizes one word into subword IDs without boundary tokens.
	Encode(word string) ([]int64, error)

	// Wrap surrounds the subwords of one part with the model's boundary
	// tokens (e.g. [CLS] ... [SEP] for BERT, <s> ... </s> for XLM-R).
	Wrap(ids []int64) []int64

	// Close releases any resources held by the tokenizer.
	Close() error
}

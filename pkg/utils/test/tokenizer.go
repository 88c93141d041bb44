package testutils

// Boundary token IDs used by MockTokenizer.
const (
	ClsID = 101
	SepID = 102
)

// MockTokenizer emits one subword per rune, with the rune as its ID.
type MockTokenizer struct {
	Closed bool
}

func (*MockTokenizer) Encode(word string) ([]int64, error) {
	var ids []int64
	for _, r := range word {
		ids = append(ids, int64(r))
	}
	return ids, nil
}

func (*MockTokenizer) Wrap(ids []int64) []int64 {
	out := append([]int64{ClsID}, ids...)
	return append(out, SepID)
}

func (t *MockTokenizer) Close() error {
	t.Closed = true
	return nil
}

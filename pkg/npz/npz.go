// Package npz writes and reads NumPy .npz archives: zip containers holding one
// .npy array per entry.
package npz

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/papercomputeco/wembeddings/pkg/npy"
	"github.com/papercomputeco/wembeddings/pkg/tensor"
)

// ErrNotFound is returned when an archive has no entry for a key.
var ErrNotFound = errors.New("npz entry not found")

// Compression selects how entries are stored in the zip container.
type Compression string

const (
	Deflate Compression = "deflate"
	Store   Compression = "store"
)

// ParseCompression validates a compression name.
func ParseCompression(name string) (Compression, error) {
	switch c := Compression(strings.ToLower(name)); c {
	case Deflate, Store:
		return c, nil
	case "":
		return Deflate, nil
	default:
		return "", fmt.Errorf("unknown compression %q (available: deflate, store)", name)
	}
}

func (c Compression) method() uint16 {
	if c == Store {
		return zip.Store
	}
	return zip.Deflate
}

// Key returns the entry name of the i-th positional array, following
// numpy.savez naming.
func Key(i int) string {
	return fmt.Sprintf("arr_%d", i)
}

// Writer appends arrays to a zip archive.
type Writer struct {
	zw     *zip.Writer
	file   *os.File
	dtype  npy.DType
	method uint16
	count  int
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithDType sets the dtype arrays are downcast to on write. Defaults to float32.
func WithDType(d npy.DType) WriterOption {
	return func(w *Writer) {
		w.dtype = d
	}
}

// WithCompression sets the zip method for every entry. Defaults to Deflate.
func WithCompression(c Compression) WriterOption {
	return func(w *Writer) {
		w.method = c.method()
	}
}

// NewWriter returns a Writer writing the archive to out. Closing the Writer
// finishes the archive but does not close out.
func NewWriter(out io.Writer, opts ...WriterOption) *Writer {
	w := &Writer{
		zw:     zip.NewWriter(out),
		dtype:  npy.Float32,
		method: zip.Deflate,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Create creates (or truncates) the archive at path.
func Create(path string, opts ...WriterOption) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}

	w := NewWriter(f, opts...)
	w.file = f
	return w, nil
}

// Append writes m under the next positional key (arr_0, arr_1, ...).
func (w *Writer) Append(m *tensor.Matrix) error {
	return w.Write(Key(w.count), m)
}

// Write writes m under key. Keys are stored without the .npy suffix.
func (w *Writer) Write(key string, m *tensor.Matrix) error {
	entry, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   key,
		Method: w.method,
	})
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", key, err)
	}

	if err := npy.Write(entry, m, w.dtype); err != nil {
		return fmt.Errorf("writing entry %s: %w", key, err)
	}

	w.count++
	return nil
}

// Len returns the number of entries written so far.
func (w *Writer) Len() int {
	return w.count
}

// Close writes the zip central directory and closes the file opened by Create.
func (w *Writer) Close() error {
	err := w.zw.Close()
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

// Reader reads arrays back from an archive.
type Reader struct {
	rc      *zip.ReadCloser
	entries map[string]*zip.File
	keys    []string
}

// Open opens the archive at path.
func Open(path string) (*Reader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	r := &Reader{
		rc:      rc,
		entries: make(map[string]*zip.File, len(rc.File)),
		keys:    make([]string, 0, len(rc.File)),
	}
	for _, f := range rc.File {
		key := strings.TrimSuffix(f.Name, ".npy")
		r.entries[key] = f
		r.keys = append(r.keys, key)
	}
	return r, nil
}

// Keys returns entry names in archive order, without any .npy suffix.
func (r *Reader) Keys() []string {
	return r.keys
}

// Read decodes the array stored under key.
func (r *Reader) Read(key string) (*tensor.Matrix, npy.DType, error) {
	f, ok := r.entries[key]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, 0, fmt.Errorf("opening entry %s: %w", key, err)
	}
	defer rc.Close()

	m, dtype, err := npy.Read(rc)
	if err != nil {
		return nil, 0, fmt.Errorf("reading entry %s: %w", key, err)
	}
	return m, dtype, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.rc.Close()
}

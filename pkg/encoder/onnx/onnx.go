// Package onnx implements encoder.Encoder with ONNX Runtime through
// github.com/yalue/onnxruntime_go.
//
// The exported graph must take int64 "input_ids" and "attention_mask" of
// shape (batch, sequence) and return every hidden state stacked into one
// float32 output of shape (layers, batch, sequence, hidden).
package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/papercomputeco/wembeddings/pkg/encoder"
)

const (
	DefaultInputIDsName      = "input_ids"
	DefaultAttentionMaskName = "attention_mask"
	DefaultOutputName        = "hidden_states"
)

// The ONNX Runtime environment is process wide; it is created by the first
// encoder and destroyed with the last one.
var (
	envMu    sync.Mutex
	envUsers int
)

// Config configures an Encoder.
type Config struct {
	// ModelPath is the path of model.onnx.
	ModelPath string

	// SharedLibraryPath points at libonnxruntime. Empty uses the platform
	// default search.
	SharedLibraryPath string

	// Threads bounds ONNX Runtime's intra- and inter-op thread pools.
	// Zero leaves the runtime defaults.
	Threads int

	InputIDsName      string
	AttentionMaskName string
	OutputName        string
}

// Encoder is an ONNX Runtime session over an exported transformer.
type Encoder struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

// New initializes the runtime if needed and opens a session on the model.
func New(cfg Config) (*Encoder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path not provided")
	}
	if cfg.InputIDsName == "" {
		cfg.InputIDsName = DefaultInputIDsName
	}
	if cfg.AttentionMaskName == "" {
		cfg.AttentionMaskName = DefaultAttentionMaskName
	}
	if cfg.OutputName == "" {
		cfg.OutputName = DefaultOutputName
	}

	if err := acquireEnvironment(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	session, err := newSession(cfg)
	if err != nil {
		releaseEnvironment()
		return nil, err
	}

	return &Encoder{session: session}, nil
}

func newSession(cfg Config) (*ort.DynamicAdvancedSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer opts.Destroy()

	if cfg.Threads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.Threads); err != nil {
			return nil, fmt.Errorf("setting intra-op threads: %w", err)
		}
		if err := opts.SetInterOpNumThreads(cfg.Threads); err != nil {
			return nil, fmt.Errorf("setting inter-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputIDsName, cfg.AttentionMaskName},
		[]string{cfg.OutputName},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfg.ModelPath, err)
	}
	return session, nil
}

// HiddenStates runs the session over the input.
func (e *Encoder) HiddenStates(ctx context.Context, in *encoder.Input) (*encoder.HiddenStates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, width := in.Shape()
	shape := ort.NewShape(int64(rows), int64(width))

	ids, err := ort.NewTensor(shape, in.FlatIDs())
	if err != nil {
		return nil, fmt.Errorf("%w: input ids: %v", encoder.ErrEncoding, err)
	}
	defer ids.Destroy()

	mask, err := ort.NewTensor(shape, in.Mask())
	if err != nil {
		return nil, fmt.Errorf("%w: attention mask: %v", encoder.ErrEncoding, err)
	}
	defer mask.Destroy()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("%w: encoder is closed", encoder.ErrEncoding)
	}

	// a nil output is allocated by the runtime
	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{ids, mask}, outputs); err != nil {
		return nil, fmt.Errorf("%w: %v", encoder.ErrEncoding, err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: hidden states are not float32", encoder.ErrEncoding)
	}

	dims := out.GetShape()
	if len(dims) != 4 || int(dims[1]) != rows || int(dims[2]) != width {
		return nil, fmt.Errorf("%w: unexpected hidden states shape %v", encoder.ErrEncoding, dims)
	}

	data := make([]float32, len(out.GetData()))
	copy(data, out.GetData())

	return &encoder.HiddenStates{
		Layers: int(dims[0]),
		Rows:   rows,
		Width:  width,
		Hidden: int(dims[3]),
		Data:   data,
	}, nil
}

// Close destroys the session and, for the last encoder, the runtime.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	releaseEnvironment()
	return err
}

func acquireEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envUsers == 0 && !ort.IsInitialized() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initializing onnxruntime: %w", err)
		}
	}
	envUsers++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()

	envUsers--
	if envUsers == 0 && ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}

var _ encoder.Encoder = (*Encoder)(nil)

//go:build onnx

package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/becomeliminal/nim-recall/memory"
)

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json file.
	TokenizerPath string

	// SharedLibraryPath points at libonnxruntime. Empty uses the loader's
	// default search path.
	SharedLibraryPath string

	// Dimensions is the embedding vector size (default: 384 for all-MiniLM-L6-v2).
	Dimensions int

	// SequenceLength is the padded model input length (default: 128).
	SequenceLength int
}

// ONNXEmbedder generates embeddings using ONNX Runtime. Local inference is
// free, so CostUnits is always 0.
type ONNXEmbedder struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  *Tokenizer
	dimensions int
	seqLen     int

	// A session is not safe for concurrent Run calls.
	mu sync.Mutex
}

var _ memory.Embedder = (*ONNXEmbedder)(nil)

var (
	envOnce sync.Once
	envErr  error
)

// New creates a new ONNX embedder.
func New(cfg Config) (*ONNXEmbedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("ModelPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.SequenceLength == 0 {
		cfg.SequenceLength = 128
	}

	envOnce.Do(func() {
		if cfg.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	if envErr != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", envErr)
	}

	tokenizer, err := LoadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
		seqLen:     cfg.SequenceLength,
	}, nil
}

// Embed converts text to a unit-length embedding vector.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) (memory.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return memory.Embedding{}, err
	}

	enc := e.tokenizer.Encode(text, e.seqLen)
	shape := ort.NewShape(1, int64(e.seqLen))

	var inputs []ort.Value
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for _, data := range [][]int64{enc.InputIDs, enc.AttentionMask, enc.TokenTypeIDs} {
		tensor, err := ort.NewTensor(shape, data)
		if err != nil {
			return memory.Embedding{}, fmt.Errorf("failed to create input tensor: %w", err)
		}
		inputs = append(inputs, tensor)
	}

	// nil outputs are allocated by Run
	outputs := []ort.Value{nil}
	e.mu.Lock()
	err := e.session.Run(inputs, outputs)
	e.mu.Unlock()
	if err != nil {
		return memory.Embedding{}, fmt.Errorf("ONNX inference failed: %w", err)
	}
	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return memory.Embedding{}, fmt.Errorf("unexpected output tensor type")
	}

	vec, err := pool(out.GetData(), out.GetShape(), enc.AttentionMask, e.dimensions)
	if err != nil {
		return memory.Embedding{}, err
	}
	return memory.Embedding{Vector: vec}, nil
}

// Dimensions returns the embedding vector size.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases ONNX resources.
func (e *ONNXEmbedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

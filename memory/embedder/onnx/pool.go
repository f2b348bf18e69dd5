package onnx

import (
	"fmt"

	"github.com/becomeliminal/nim-recall/memory"
)

// pool turns model output into a sentence vector. Output of shape
// [1, hidden] is already pooled; [1, seq, hidden] is mean pooled over the
// attended positions. The result is unit length.
func pool(data []float32, shape []int64, mask []int64, dims int) ([]float32, error) {
	switch len(shape) {
	case 2:
		if len(data) < dims {
			return nil, fmt.Errorf("output dimension mismatch: got %d, expected %d", len(data), dims)
		}
		out := make([]float32, dims)
		copy(out, data[:dims])
		return memory.Normalize(out), nil

	case 3:
		if shape[0] != 1 {
			return nil, fmt.Errorf("expected batch size 1, got %d", shape[0])
		}
		seqLen, hidden := int(shape[1]), int(shape[2])
		if hidden != dims {
			return nil, fmt.Errorf("hidden size mismatch: got %d, expected %d", hidden, dims)
		}
		if len(data) < seqLen*hidden || len(mask) < seqLen {
			return nil, fmt.Errorf("output of %d values does not match shape %v", len(data), shape)
		}

		out := make([]float32, dims)
		var attended float32
		for i := 0; i < seqLen; i++ {
			if mask[i] == 0 {
				continue
			}
			attended++
			row := data[i*hidden : (i+1)*hidden]
			for j, v := range row {
				out[j] += v
			}
		}
		if attended == 0 {
			return out, nil
		}
		for j := range out {
			out[j] /= attended
		}
		return memory.Normalize(out), nil
	}
	return nil, fmt.Errorf("unexpected output shape: %v", shape)
}

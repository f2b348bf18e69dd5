package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-recall/memory"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := New(WithDimensions(16), WithCost(0.5))

	a, err := e.Embed(context.Background(), "lunch plans")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "lunch plans")
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
	assert.Len(t, a.Vector, 16)
	assert.Equal(t, 0.5, a.CostUnits)
	assert.Equal(t, 2, e.Calls())

	var norm float64
	for _, v := range a.Vector {
		norm += float64(v * v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestMockEmbedder_PinnedVector(t *testing.T) {
	e := New(WithVector("q", []float32{1, 0, 0}))

	got, err := e.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got.Vector)

	// Callers mutating the result must not affect later calls.
	got.Vector[0] = 42
	again, _ := e.Embed(context.Background(), "q")
	assert.Equal(t, float32(1), again.Vector[0])
}

func TestMockEmbedder_Error(t *testing.T) {
	boom := errors.New("provider down")
	e := New(WithError(boom))

	_, err := e.Embed(context.Background(), "anything")
	assert.ErrorIs(t, err, boom)
}

func TestNormalize_Zero(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, memory.Normalize([]float32{0, 0}))
}

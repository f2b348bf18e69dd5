package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "favorite color", req.Prompt)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding": [0.5, 0.25, -1]}`))
	}))
	defer srv.Close()

	e, err := New(Config{Host: srv.URL, Dimensions: 3})
	require.NoError(t, err)

	emb, err := e.Embed(context.Background(), "favorite color")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, -1}, emb.Vector)
	assert.Zero(t, emb.CostUnits)
	assert.Equal(t, 3, e.Dimensions())
}

func TestEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model \"nomic-embed-text\" not found"}`))
	}))
	defer srv.Close()

	e, err := New(Config{Host: srv.URL})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestEmbed_EmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding": []}`))
	}))
	defer srv.Close()

	e, err := New(Config{Host: srv.URL})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "x")
	assert.Error(t, err)
}

package connector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-recall/core"
)

func seedMailIndex(t *testing.T, idx *Index) {
	t.Helper()
	docs := []IndexDocument{
		{ID: "m1", Account: "ana@example.com", Title: "Lunch on Friday", Body: "Shall we grab lunch at the noodle place?", ContainerID: "t1", ContainerTitle: "Inbox", CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		{ID: "m2", Account: "ana@example.com", Title: "Quarterly report", Body: "Numbers attached.", ContainerID: "t2"},
		{ID: "m3", Account: "bo@example.com", Title: "Lunch invite", Body: "Lunch with the team"},
	}
	for _, d := range docs {
		require.NoError(t, idx.Add(d))
	}
}

func TestIndex_SearchScopedByAccount(t *testing.T) {
	idx, err := NewMemIndex(KindEmail)
	require.NoError(t, err)
	defer idx.Close()
	seedMailIndex(t, idx)

	items, err := idx.Search(context.Background(), "lunch", Credentials{Account: "ana@example.com"}, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)

	it := items[0]
	assert.Equal(t, "m1", it.ID)
	assert.Equal(t, core.ConnectorType(KindEmail), it.Type)
	assert.Equal(t, "Lunch on Friday", it.Summary)
	assert.Equal(t, "Shall we grab lunch at the noodle place?", it.Content)
	assert.Equal(t, "t1", it.Metadata.ContainerID)
	assert.Equal(t, KindEmail, it.Metadata.Provenance)
	assert.True(t, it.Metadata.CreatedAt.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
}

func TestIndex_SearchWithoutAccountIsNotProvisioned(t *testing.T) {
	idx, err := NewMemIndex(KindEmail)
	require.NoError(t, err)
	defer idx.Close()
	seedMailIndex(t, idx)

	items, err := idx.Search(context.Background(), "lunch", Credentials{AccessToken: "tok"}, 5)
	assert.ErrorIs(t, err, core.ErrSourceNotProvisioned)
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.Empty(t, items)
}

func TestIndex_SearchLimit(t *testing.T) {
	idx, err := NewMemIndex(KindEmail)
	require.NoError(t, err)
	defer idx.Close()
	seedMailIndex(t, idx)
	require.NoError(t, idx.Add(IndexDocument{ID: "m4", Account: "ana@example.com", Title: "Lunch again", Body: "Tacos?"}))

	ana := Credentials{Account: "ana@example.com"}
	items, err := idx.Search(context.Background(), "lunch", ana, 5)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = idx.Search(context.Background(), "lunch", ana, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = idx.Search(context.Background(), "", ana, 5)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIndex_Remove(t *testing.T) {
	idx, err := NewMemIndex(KindEmail)
	require.NoError(t, err)
	defer idx.Close()
	seedMailIndex(t, idx)

	require.NoError(t, idx.Remove("m1"))
	items, err := idx.Search(context.Background(), "noodle", Credentials{Account: "ana@example.com"}, 5)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, idx.Add(IndexDocument{Title: "no id"}), core.ErrInvalidInput)
}

func TestOpenIndex_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.bleve")

	idx, err := OpenIndex(KindDrive, path)
	require.NoError(t, err)
	require.NoError(t, idx.Add(IndexDocument{ID: "d1", Account: "me@example.com", Title: "Roadmap", Body: "lunch and learn schedule"}))
	require.NoError(t, idx.Close())

	idx, err = OpenIndex(KindDrive, path)
	require.NoError(t, err)
	defer idx.Close()
	items, err := idx.Search(context.Background(), "schedule", Credentials{Account: "me@example.com"}, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "d1", items[0].ID)
}

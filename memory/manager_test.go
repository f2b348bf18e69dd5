package memory_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/memory"
	"github.com/becomeliminal/nim-recall/memory/embedder/mock"
	"github.com/becomeliminal/nim-recall/memory/store/sqlite"
)

// stepClock advances by one second on every call so updated_at ordering is
// deterministic.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newManager(t *testing.T, embedder memory.Embedder) *memory.Manager {
	t.Helper()
	store, err := sqlite.Open(":memory:", sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &stepClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return memory.NewManager(store, embedder, nil, memory.WithClock(clock.Now))
}

func TestManager_StoreUpsertIdempotence(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, mock.New(mock.WithDimensions(8)))

	first, err := m.Store(ctx, "U", "color", "blue", "")
	require.NoError(t, err)
	assert.Equal(t, memory.CategoryFact, first.Category)

	second, err := m.Store(ctx, "U", "color", "green", memory.CategoryPreference)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	all, err := m.List(ctx, "U")
	require.NoError(t, err)
	var colors []memory.Memory
	for _, mem := range all {
		if mem.Key == "color" {
			colors = append(colors, mem)
		}
	}
	require.Len(t, colors, 1)
	assert.Equal(t, "green", colors[0].Value)
	assert.Equal(t, memory.CategoryPreference, colors[0].Category)
}

func TestManager_StoreEmbedsKeyValuePair(t *testing.T) {
	ctx := context.Background()
	embedder := mock.New(mock.WithVector("callsign: Falcon", []float32{0, 1, 0}))
	m := newManager(t, embedder)

	stored, err := m.Store(ctx, "U", "  callsign ", " Falcon ", memory.CategoryFact)
	require.NoError(t, err)
	assert.Equal(t, "callsign", stored.Key)
	assert.Equal(t, "Falcon", stored.Value)
	assert.Equal(t, []float32{0, 1, 0}, stored.Embedding)
	assert.Equal(t, 1, embedder.Calls())
}

func TestManager_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, mock.New(mock.WithDimensions(8)))

	for _, k := range []string{"a", "b", "c"} {
		_, err := m.Store(ctx, "U", k, "v", "")
		require.NoError(t, err)
	}
	// Touching "a" again moves it to the front.
	_, err := m.Store(ctx, "U", "a", "v2", "")
	require.NoError(t, err)

	all, err := m.List(ctx, "U")
	require.NoError(t, err)
	keys := make([]string, len(all))
	for i, mem := range all {
		keys[i] = mem.Key
	}
	assert.Equal(t, []string{"a", "c", "b"}, keys)
}

func TestManager_UserNamespacing(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, mock.New(mock.WithDimensions(8)))

	mine, err := m.Store(ctx, "user1", "city", "Lisbon", "")
	require.NoError(t, err)
	_, err = m.Store(ctx, "user2", "city", "Oslo", "")
	require.NoError(t, err)

	list1, _ := m.List(ctx, "user1")
	list2, _ := m.List(ctx, "user2")
	require.Len(t, list1, 1)
	require.Len(t, list2, 1)
	assert.Equal(t, "Lisbon", list1[0].Value)
	assert.Equal(t, "Oslo", list2[0].Value)

	// Another owner cannot see the memory: it is reported as not found.
	_, err = m.Get(ctx, "user2", mine.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// Delete is idempotent: unknown and foreign ids succeed without effect.
func TestManager_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, mock.New(mock.WithDimensions(8)))

	mem, err := m.Store(ctx, "U", "pet", "cat", "")
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "someone-else", mem.ID))
	all, _ := m.List(ctx, "U")
	assert.Len(t, all, 1, "foreign delete must not remove the memory")

	require.NoError(t, m.Delete(ctx, "U", mem.ID))
	require.NoError(t, m.Delete(ctx, "U", mem.ID))
	require.NoError(t, m.Delete(ctx, "U", "never-existed"))

	all, _ = m.List(ctx, "U")
	assert.Empty(t, all)
}

func TestManager_EmbeddingFailureIsWriteFailure(t *testing.T) {
	boom := errors.New("provider down")
	m := newManager(t, mock.New(mock.WithError(boom)))

	_, err := m.Store(context.Background(), "U", "color", "blue", "")
	assert.ErrorIs(t, err, core.ErrMemoryWrite)
	assert.ErrorIs(t, err, boom)
}

type failingStore struct {
	memory.Store
}

func (failingStore) Upsert(context.Context, memory.Memory) (*memory.Memory, error) {
	return nil, errors.New("UNIQUE constraint failed: memories.id")
}

func (failingStore) Delete(context.Context, string, string) error {
	return errors.New("database is locked")
}

func TestManager_StoreFailuresPropagate(t *testing.T) {
	m := memory.NewManager(failingStore{}, mock.New(), nil)

	_, err := m.Store(context.Background(), "U", "color", "blue", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMemoryWrite)
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")

	err = m.Delete(context.Background(), "U", "id")
	assert.ErrorIs(t, err, core.ErrMemoryWrite)
}

func TestManager_Validation(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, mock.New(mock.WithDimensions(8)))

	cases := []struct {
		name, owner, key, value string
		category                memory.Category
	}{
		{"no owner", "", "k", "v", ""},
		{"no key", "U", "  ", "v", ""},
		{"no value", "U", "k", "", ""},
		{"bad category", "U", "k", "v", "gossip"},
		{"key too long", "U", strings.Repeat("k", 101), "v", ""},
		{"value too long", "U", "k", strings.Repeat("v", 2001), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Store(ctx, tc.owner, tc.key, tc.value, tc.category)
			assert.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}

	_, err := m.List(ctx, "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.ErrorIs(t, m.Delete(ctx, "U", ""), core.ErrInvalidInput)
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range []memory.Category{memory.CategoryPreference, memory.CategoryFact, memory.CategoryInstruction, memory.CategoryContext} {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, memory.Category("").Valid())
}

func TestMemory_Text(t *testing.T) {
	assert.Equal(t, "color: blue", memory.Memory{Key: "color", Value: "blue"}.Text())
}

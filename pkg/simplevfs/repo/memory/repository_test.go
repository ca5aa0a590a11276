package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vfs/pkg/simplevfs"
	"github.com/tendant/simple-vfs/pkg/simplevfs/repo/memory"
)

var (
	testURN = simplevfs.URN("aff4:/C.1234567812345678")
	t0      = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestWriteBatchAndReadLatest(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.WriteBatch(ctx, testURN, t0, map[string][]byte{
		"aff4:hostname": []byte(`"h1"`),
		"aff4:system":   []byte(`"Linux"`),
	}))
	require.NoError(t, store.WriteBatch(ctx, testURN, t0.Add(time.Minute), map[string][]byte{
		"aff4:hostname": []byte(`"h2"`),
	}))

	t.Run("latest as of now", func(t *testing.T) {
		rec, err := store.ReadLatest(ctx, testURN, "aff4:hostname", t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []byte(`"h2"`), rec.Value)
		assert.Equal(t, t0.Add(time.Minute), rec.Timestamp)
	})

	t.Run("latest as of an earlier time", func(t *testing.T) {
		rec, err := store.ReadLatest(ctx, testURN, "aff4:hostname", t0)
		require.NoError(t, err)
		assert.Equal(t, []byte(`"h1"`), rec.Value)
	})

	t.Run("as-of before first record", func(t *testing.T) {
		_, err := store.ReadLatest(ctx, testURN, "aff4:hostname", t0.Add(-time.Second))
		assert.ErrorIs(t, err, simplevfs.ErrAttributeNotSet)
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := store.ReadLatest(ctx, testURN, "aff4:missing", t0.Add(time.Hour))
		assert.ErrorIs(t, err, simplevfs.ErrAttributeNotSet)
	})
}

func TestEqualTimestampTieBreak(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.WriteBatch(ctx, testURN, t0, map[string][]byte{"a": []byte("1")}))
	require.NoError(t, store.WriteBatch(ctx, testURN, t0, map[string][]byte{"a": []byte("2")}))

	rec, err := store.ReadLatest(ctx, testURN, "a", t0)
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), rec.Value, "later write wins on equal timestamps")
}

func TestReadAll(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	// Written out of timestamp order on purpose.
	require.NoError(t, store.WriteBatch(ctx, testURN, t0.Add(2*time.Second), map[string][]byte{"a": []byte("late")}))
	require.NoError(t, store.WriteBatch(ctx, testURN, t0, map[string][]byte{"a": []byte("early")}))

	records, err := store.ReadAll(ctx, testURN, "a")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []byte("early"), records[0].Value)
	assert.Equal(t, []byte("late"), records[1].Value)

	t.Run("empty history", func(t *testing.T) {
		records, err := store.ReadAll(ctx, testURN, "missing")
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestReadSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.WriteBatch(ctx, testURN, t0, map[string][]byte{
		"a": []byte("a1"),
		"b": []byte("b1"),
	}))
	require.NoError(t, store.WriteBatch(ctx, testURN, t0.Add(time.Second), map[string][]byte{
		"a": []byte("a2"),
	}))
	require.NoError(t, store.WriteBatch(ctx, testURN, t0.Add(2*time.Second), map[string][]byte{
		"c": []byte("c1"),
	}))

	t.Run("per-attribute latest as of now", func(t *testing.T) {
		snap, err := store.ReadSnapshot(ctx, testURN, t0.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, snap, 3)
		assert.Equal(t, []byte("a2"), snap["a"].Value)
		assert.Equal(t, []byte("b1"), snap["b"].Value)
		assert.Equal(t, []byte("c1"), snap["c"].Value)
	})

	t.Run("point in time excludes later records", func(t *testing.T) {
		snap, err := store.ReadSnapshot(ctx, testURN, t0)
		require.NoError(t, err)
		require.Len(t, snap, 2)
		assert.Equal(t, []byte("a1"), snap["a"].Value)
		assert.NotContains(t, snap, "c")
	})
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	exists, err := store.Exists(ctx, testURN)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.WriteBatch(ctx, testURN, t0, map[string][]byte{"a": []byte("1")}))

	exists, err = store.Exists(ctx, testURN)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestValueIsolation(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	value := []byte("original")
	require.NoError(t, store.WriteBatch(ctx, testURN, t0, map[string][]byte{"a": value}))

	// Mutating the caller's slice must not reach the stored record.
	copy(value, "mutated!")

	rec, err := store.ReadLatest(ctx, testURN, "a", t0)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), rec.Value)
}

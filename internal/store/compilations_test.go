package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/esfilter/internal/compiler"
)

func TestRecord_GetRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := createTestCompilation("c1", "roads")
	c.FullySupported = false
	c.Gaps = []compiler.Gap{
		{Node: "like", Field: "lanes", Reason: "pattern match on a integer attribute"},
		{Node: "=", Reason: "comparison needs one property and one literal"},
	}

	require.NoError(t, s.Record(ctx, c))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, "roads", got.Layer)
	assert.Equal(t, "count", got.Operation)
	assert.Equal(t, "fp-c1", got.Fingerprint)
	assert.Equal(t, `{"match_all":{}}`, got.Query)
	assert.False(t, got.FullySupported)
	assert.Equal(t, c.Gaps, got.Gaps)
	assert.Equal(t, int64(3), got.Hits)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
}

func TestRecord_EmptyGaps(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, createTestCompilation("c1", "roads")))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.NotNil(t, got.Gaps)
	assert.Empty(t, got.Gaps)
	assert.True(t, got.FullySupported)
}

func TestRecord_DuplicateIDKeepsFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createTestCompilation("c1", "roads")
	second := createTestCompilation("c1", "rivers")

	require.NoError(t, s.Record(ctx, first))
	require.NoError(t, s.Record(ctx, second))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "roads", all[0].Layer)
}

func TestRecord_DefaultsCreatedAt(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c := createTestCompilation("c1", "roads")
	c.CreatedAt = time.Time{}
	before := time.Now().Add(-time.Second)

	require.NoError(t, s.Record(ctx, c))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.After(before))
}

func TestGet_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_OrderAndLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// IDs sort opposite to insertion so ordering must come from seq.
	ids := []string{"e", "d", "c", "b", "a"}
	for _, id := range ids {
		require.NoError(t, s.Record(ctx, createTestCompilation(id, "roads")))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, c := range all {
		assert.Equal(t, ids[i], c.ID)
		assert.Equal(t, int64(i+1), c.Seq)
	}

	recent, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].ID)
	assert.Equal(t, "a", recent[1].ID)
}

func TestList_Empty(t *testing.T) {
	s := createTestStore(t)

	all, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestByFingerprint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, layer := range []string{"roads", "rivers", "roads"} {
		c := createTestCompilation(fmt.Sprintf("c%d", i), layer)
		if layer == "roads" {
			c.Fingerprint = "shared"
		}
		require.NoError(t, s.Record(ctx, c))
	}

	got, err := s.ByFingerprint(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c0", got[0].ID)
	assert.Equal(t, "c2", got[1].ID)
}

func TestRecord_Concurrent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Record(ctx, createTestCompilation(fmt.Sprintf("c%02d", i), "roads")))
		}(i)
	}
	wg.Wait()

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 20)

	seen := make(map[int64]bool)
	for _, c := range all {
		assert.False(t, seen[c.Seq], "duplicate seq %d", c.Seq)
		seen[c.Seq] = true
	}
}

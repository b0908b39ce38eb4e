package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/strata"
	strtest "github.com/zoobzio/strata/testing"
)

func TestCollectionConformance(t *testing.T) {
	coll, err := New().Collection(context.Background(), "accounts")
	require.NoError(t, err)
	strtest.CollectionConformance(t, coll)
}

func TestCollection_SameInstance(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.Collection(ctx, "accounts")
	require.NoError(t, err)
	b, err := s.Collection(ctx, "accounts")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.NoError(t, s.Close())
}

func TestCollection_SnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	coll, err := New().Collection(ctx, "accounts")
	require.NoError(t, err)

	doc := strata.Document{"name": "alice"}
	_, err = coll.Put(ctx, "k1", doc)
	require.NoError(t, err)
	doc["name"] = "mutated"

	got, err := coll.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got["name"])

	got["name"] = "mutated again"
	again, err := coll.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "alice", again["name"])
}

func TestFind_NestedPathAndCompoundKeys(t *testing.T) {
	ctx := context.Background()
	coll, err := New().Collection(ctx, "accounts")
	require.NoError(t, err)

	require.NoError(t, coll.CreateIndex(ctx, "by_city_plan", "address.city", "plan"))
	for key, doc := range map[string]strata.Document{
		"a": {"plan": "pro", "address": map[string]any{"city": "Oslo"}},
		"b": {"plan": "free", "address": map[string]any{"city": "Oslo"}},
		"c": {"plan": "pro", "address": map[string]any{"city": "Bergen"}},
	} {
		_, err := coll.Put(ctx, key, doc)
		require.NoError(t, err)
	}

	docs, err := coll.Find(ctx, "by_city_plan", "Oslo", "pro")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "pro", docs[0]["plan"])

	docs, err = coll.Find(ctx, "by_city_plan", "Oslo")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = coll.Find(ctx, "by_city_plan", "Oslo", "pro", "extra")
	assert.Error(t, err)
}

func TestFind_NumbersCompareByJSON(t *testing.T) {
	ctx := context.Background()
	coll, err := New().Collection(ctx, "counters")
	require.NoError(t, err)

	require.NoError(t, coll.CreateIndex(ctx, "by_n", "n"))
	_, err = coll.Put(ctx, "one", strata.Document{"n": 1})
	require.NoError(t, err)
	_, err = coll.Put(ctx, "str", strata.Document{"n": "1"})
	require.NoError(t, err)

	docs, err := coll.Find(ctx, "by_n", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.EqualValues(t, 1, docs[0]["n"])
}

func TestCreateIndex_RequiresFields(t *testing.T) {
	coll, err := New().Collection(context.Background(), "accounts")
	require.NoError(t, err)
	assert.Error(t, coll.CreateIndex(context.Background(), "empty"))
}

package mongo

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/strata"
	strtest "github.com/zoobzio/strata/testing"
)

// openTestStore connects to the server named by STRATA_TEST_MONGO_URI and
// uses a throwaway database dropped on cleanup.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("STRATA_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("STRATA_TEST_MONGO_URI not set, skipping MongoDB integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := "strata_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s, err := Open(ctx, uri, name)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Database().Drop(context.Background())
		_ = s.Close()
	})
	return s
}

func TestCollectionConformance(t *testing.T) {
	s := openTestStore(t)
	coll, err := s.Collection(context.Background(), "accounts")
	require.NoError(t, err)
	strtest.CollectionConformance(t, coll)
}

func TestGet_OmitsID(t *testing.T) {
	ctx := context.Background()
	coll, err := openTestStore(t).Collection(ctx, "accounts")
	require.NoError(t, err)

	_, err = coll.Put(ctx, "k1", strata.Document{"name": "alice", "at": time.Unix(1700000000, 0)})
	require.NoError(t, err)

	doc, err := coll.Get(ctx, "k1")
	require.NoError(t, err)
	assert.NotContains(t, doc, "_id")
	at, ok := doc["at"].(time.Time)
	require.True(t, ok, "at is %T", doc["at"])
	assert.Equal(t, int64(1700000000), at.Unix())
}

func TestListIndexes_SkipsPrimary(t *testing.T) {
	ctx := context.Background()
	coll, err := openTestStore(t).Collection(ctx, "accounts")
	require.NoError(t, err)

	_, err = coll.Put(ctx, "k1", strata.Document{"org": "acme"})
	require.NoError(t, err)
	names, err := coll.ListIndexes(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCollection_EmptyName(t *testing.T) {
	s := &Store{}
	_, err := s.Collection(context.Background(), "")
	assert.Error(t, err)
	assert.NoError(t, s.Close())
}

// Package testing provides fixtures and conformance checks for strata.
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/strata"
)

// TestKey returns a valid 32-byte AES-256 key for testing.
func TestKey(tb testing.TB) []byte {
	tb.Helper()
	return []byte("32-byte-key-for-aes-256-encrypt!")
}

// TestEncrypt returns an aes-256-gcm Encrypt keyed with TestKey.
func TestEncrypt(tb testing.TB) *strata.Encrypt {
	tb.Helper()
	enc, err := strata.NewEncrypt(TestKey(tb))
	if err != nil {
		tb.Fatalf("NewEncrypt: %v", err)
	}
	return enc
}

// Secret is the nested payload stored in Account.Secret.
type Secret struct {
	Token string `json:"token" bson:"token"`
	Scope string `json:"scope" bson:"scope"`
}

// Account is a bound struct exercising every chain and observer tag.
type Account struct {
	ID       string  `json:"id" bson:"id"`
	Email    string  `json:"email" bson:"email" strata.encrypt:"aes-256-gcm" strata.mask:"email"`
	Password string  `json:"password" bson:"password" strata.hash:"sha256" strata.redact:"***"`
	Secret   *Secret `json:"secret,omitempty" bson:"secret,omitempty" strata.encrypt:""`
	Title    string  `json:"title" bson:"title" strata.localize:"en"`
	Plan     string  `json:"plan" bson:"plan"`
}

// Scenario is the account type used by pipeline-level tests: password is
// hashed, secret encrypted and title localized with an "en" fallback.
type Scenario struct {
	Type     *strata.EntityType
	Hash     *strata.Hash
	Encrypt  *strata.Encrypt
	Localize *strata.Localize
}

// NewScenarioType defines the scenario account type in reg.
func NewScenarioType(tb testing.TB, reg *strata.Registry) *Scenario {
	tb.Helper()
	et, err := reg.Define("account")
	if err != nil {
		tb.Fatalf("Define: %v", err)
	}
	h, err := strata.NewHash()
	if err != nil {
		tb.Fatalf("NewHash: %v", err)
	}
	enc := TestEncrypt(tb)
	loc := strata.NewLocalize(strata.WithFallbackLocale("en"))

	et.MustAttach("password", h)
	et.MustAttach("secret", enc)
	et.MustAttach("title", loc)
	return &Scenario{Type: et, Hash: h, Encrypt: enc, Localize: loc}
}

// CollectionConformance runs the strata.Collection contract against an
// empty collection.
func CollectionConformance(t *testing.T, coll strata.Collection) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := coll.Get(ctx, "missing")
		assert.ErrorIs(t, err, strata.ErrNotFound)
	})

	t.Run("put generates key", func(t *testing.T) {
		key, err := coll.Put(ctx, "", strata.Document{"name": "generated", "org": "none"})
		require.NoError(t, err)
		require.NotEmpty(t, key)

		doc, err := coll.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "generated", doc["name"])
	})

	t.Run("put and get", func(t *testing.T) {
		key, err := coll.Put(ctx, "k1", strata.Document{
			"name":   "alice",
			"org":    "acme",
			"logins": 3,
			"secret": []any{"Y3Q=", "aXY=", ""},
			"title":  map[string]any{"en": "Engineer", "fr": "Ingénieur"},
		})
		require.NoError(t, err)
		assert.Equal(t, "k1", key)

		doc, err := coll.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "alice", doc["name"])
		assert.EqualValues(t, 3, doc["logins"])

		secret, ok := doc["secret"].([]any)
		require.True(t, ok, "secret is %T", doc["secret"])
		assert.Equal(t, []any{"Y3Q=", "aXY=", ""}, secret)

		title, ok := doc["title"].(map[string]any)
		require.True(t, ok, "title is %T", doc["title"])
		assert.Equal(t, "Ingénieur", title["fr"])
	})

	t.Run("update merges", func(t *testing.T) {
		require.NoError(t, coll.Update(ctx, "k1", strata.Document{"name": "bob"}))

		doc, err := coll.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "bob", doc["name"])
		assert.Equal(t, "acme", doc["org"])
	})

	t.Run("update missing", func(t *testing.T) {
		err := coll.Update(ctx, "missing", strata.Document{"name": "x"})
		assert.ErrorIs(t, err, strata.ErrNotFound)
	})

	t.Run("indexes", func(t *testing.T) {
		require.NoError(t, coll.CreateIndex(ctx, "by_org", "org"))
		require.NoError(t, coll.CreateIndex(ctx, "by_org", "org"))

		names, err := coll.ListIndexes(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, "by_org")
	})

	t.Run("find by index", func(t *testing.T) {
		_, err := coll.Put(ctx, "k2", strata.Document{"name": "carol", "org": "acme"})
		require.NoError(t, err)
		_, err = coll.Put(ctx, "k3", strata.Document{"name": "dave", "org": "other"})
		require.NoError(t, err)

		docs, err := coll.Find(ctx, "by_org", "acme")
		require.NoError(t, err)
		assert.ElementsMatch(t, []any{"bob", "carol"}, names(docs))
	})

	t.Run("find unknown index", func(t *testing.T) {
		_, err := coll.Find(ctx, "by_nothing", "x")
		assert.ErrorIs(t, err, strata.ErrIndexNotFound)
	})

	t.Run("find keys without index", func(t *testing.T) {
		_, err := coll.Find(ctx, "", "acme")
		assert.ErrorIs(t, err, strata.ErrIndexKeys)
	})

	t.Run("find too many keys", func(t *testing.T) {
		_, err := coll.Find(ctx, "by_org", "acme", "extra")
		assert.ErrorIs(t, err, strata.ErrIndexKeys)
	})

	t.Run("find all", func(t *testing.T) {
		docs, err := coll.Find(ctx, "")
		require.NoError(t, err)
		assert.Len(t, docs, 4)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, coll.Delete(ctx, "k1"))

		_, err := coll.Get(ctx, "k1")
		assert.ErrorIs(t, err, strata.ErrNotFound)
		assert.ErrorIs(t, coll.Delete(ctx, "k1"), strata.ErrNotFound)
	})
}

func names(docs []strata.Document) []any {
	out := make([]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, d["name"])
	}
	return out
}

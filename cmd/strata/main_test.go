package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/strata"
	"github.com/zoobzio/strata/sqlite"
)

const testKey = "32-byte-key-for-aes-256-encrypt!"

// writeConfig writes a sqlite-backed config file and returns its path and
// the database path.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "strata.db")
	path := filepath.Join(dir, "strata.yaml")
	content := "encrypt:\n  secret_key: " + base64.StdEncoding.EncodeToString([]byte(testKey)) +
		"\nlocalize:\n  fallback_locale: en\nstore:\n  driver: sqlite\n  dsn: " + db + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path, db
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := run(t, "--config", path, "--json", "keygen", "--algorithm", "aes-128-gcm")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "aes-128-gcm", got["algorithm"])
	key, err := base64.StdEncoding.DecodeString(got["key"])
	require.NoError(t, err)
	assert.Len(t, key, 16)

	_, err = run(t, "--config", path, "keygen", "--algorithm", "rot13")
	assert.Error(t, err)
}

func TestConfigCheck_RedactsKey(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := run(t, "--config", path, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "***")
	assert.NotContains(t, out, base64.StdEncoding.EncodeToString([]byte(testKey)))
}

func TestConfigCheck_Invalid(t *testing.T) {
	path, _ := writeConfig(t)
	t.Setenv("STRATA_HASH_ALGORITHM", "md5")

	_, err := run(t, "--config", path, "config", "check")
	assert.ErrorIs(t, err, strata.ErrInvalidAlgorithm)
}

func TestIndexes(t *testing.T) {
	path, _ := writeConfig(t)

	_, err := run(t, "--config", path, "indexes", "create", "account", "by_org", "org")
	require.NoError(t, err)

	out, err := run(t, "--config", path, "--json", "indexes", "list", "account")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"by_org"}, names)
}

func TestInspect_UnlocksFields(t *testing.T) {
	ctx := context.Background()
	path, db := writeConfig(t)

	// Seed a document through the pipeline.
	reg := strata.NewRegistry()
	et, err := reg.Define("account")
	require.NoError(t, err)
	enc, err := strata.NewEncrypt([]byte(testKey))
	require.NoError(t, err)
	loc := strata.NewLocalize(strata.WithFallbackLocale("en"))
	et.MustAttach("secret", enc).MustAttach("title", loc)

	e := et.New()
	require.NoError(t, e.Set("secret", "s3cr3t"))
	require.NoError(t, loc.SelectLocale(e, "en", "title"))
	require.NoError(t, e.Set("title", "Engineer"))
	require.NoError(t, loc.SelectLocale(e, "fr", "title"))
	require.NoError(t, e.Set("title", "Ingénieur"))

	store, err := sqlite.Open(ctx, db)
	require.NoError(t, err)
	m, err := strata.NewModel(ctx, store, et)
	require.NoError(t, err)
	key, err := m.Insert(ctx, e)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := run(t, "--config", path, "--json", "inspect", "account", key,
		"--decrypt", "secret", "--localized", "title", "--locale", "fr")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "s3cr3t", doc["secret"])
	assert.Equal(t, "Ingénieur", doc["title"])
	assert.Equal(t, key, doc["id"])

	out, err = run(t, "--config", path, "--json", "inspect", "account", key, "--localized", "title", "--locale", "de")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Engineer", doc["title"], "unknown locales fall back")

	_, err = run(t, "--config", path, "inspect", "account", "missing")
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	path, _ := writeConfig(t)
	_, err := run(t, "--config", path, "--log-level", "loud", "config", "check")
	assert.Error(t, err)
}

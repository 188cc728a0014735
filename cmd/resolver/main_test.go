package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/resolver/internal/storage/sqlite"
	"github.com/scrypster/resolver/internal/storage/storagetest"
	"github.com/scrypster/resolver/pkg/types"
)

// seedDataDir writes the Acme catalog to a SQLite file in a temp data
// directory and points RESOLVER_DATA_PATH at it.
func seedDataDir(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	store, err := sqlite.NewStore(filepath.Join(dir, "resolver.db"))
	require.NoError(t, err)
	storagetest.Load(t, store.GetDB(), storagetest.AcmeFixtures())
	require.NoError(t, store.Close())

	t.Setenv("RESOLVER_CONFIG", "")
	t.Setenv("RESOLVER_STORAGE_ENGINE", "sqlite")
	t.Setenv("RESOLVER_DATA_PATH", dir)
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Definition(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "resolver", cmd.Use)

	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "resolve", "batch", "suggest"}, names)

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)
}

func TestResolveCmd(t *testing.T) {
	seedDataDir(t)

	t.Run("glossary hit", func(t *testing.T) {
		out, err := run(t, "", "resolve", "ACME")
		require.NoError(t, err)

		var result types.ResolutionResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, "E1", result.Entity.ID)
		assert.Equal(t, types.MatchSourceGlossary, result.MatchSource)
	})

	t.Run("type filter excludes", func(t *testing.T) {
		out, err := run(t, "", "resolve", "Acme Corporation", "--type", "person,project")
		require.NoError(t, err)
		assert.Equal(t, "null", strings.TrimSpace(out))
	})

	t.Run("embedding enables semantic tier", func(t *testing.T) {
		out, err := run(t, "", "resolve", "widget maker", "--embedding", "0.82, 0.5723635, 0")
		require.NoError(t, err)

		var result types.ResolutionResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, types.MatchSourceSemantic, result.MatchSource)
	})

	t.Run("bad embedding", func(t *testing.T) {
		_, err := run(t, "", "resolve", "acme", "--embedding", "1,x")
		assert.ErrorContains(t, err, "embedding component 1")
	})

	t.Run("requires a mention", func(t *testing.T) {
		_, err := run(t, "", "resolve")
		assert.Error(t, err)
	})
}

func TestBatchCmd(t *testing.T) {
	seedDataDir(t)

	out, err := run(t, "acme\nzzz\nAcme Corporation\n", "batch")
	require.NoError(t, err)

	var results []*types.ResolutionResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)
	assert.Equal(t, types.MatchSourceGlossary, results[0].MatchSource)
	assert.Nil(t, results[1])
	assert.Equal(t, types.MatchSourceExact, results[2].MatchSource)
}

func TestSuggestCmd(t *testing.T) {
	seedDataDir(t)

	out, err := run(t, "", "suggest", "acmee", "--top-k", "3")
	require.NoError(t, err)

	var suggestions []types.ScoredAlias
	require.NoError(t, json.Unmarshal([]byte(out), &suggestions))
	require.Len(t, suggestions, 1)
	assert.Equal(t, "acme", suggestions[0].Alias.Term)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	t.Setenv("RESOLVER_CONFIG", "")
	t.Setenv("RESOLVER_STORAGE_ENGINE", "mongodb")

	_, err := run(t, "", "resolve", "acme")
	assert.ErrorContains(t, err, "unknown storage engine")
}

func TestRootCmd_ConfigFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  engine: mongodb\n"), 0o600))
	t.Setenv("RESOLVER_CONFIG", path)
	t.Setenv("RESOLVER_STORAGE_ENGINE", "")

	_, err := run(t, "", "resolve", "acme")
	assert.ErrorContains(t, err, "unknown storage engine")

	// --config wins over RESOLVER_CONFIG.
	seedDataDir(t)
	t.Setenv("RESOLVER_CONFIG", path)
	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("{}\n"), 0o600))

	out, err := run(t, "", "resolve", "acme", "--config", empty)
	require.NoError(t, err)
	assert.Contains(t, out, `"E1"`)
}

func TestParseEmbedding(t *testing.T) {
	got, err := parseEmbedding("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseEmbedding(" 1, 0.5 ,0 ")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0.5, 0}, got)
}

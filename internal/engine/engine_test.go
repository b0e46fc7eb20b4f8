package engine

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/metrics"
)

func lineConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return &config.Config{
		Corpus: config.CorpusConfig{Type: config.CorpusLine, Path: path},
	}
}

func TestOpenLineCorpus(t *testing.T) {
	cfg := lineConfig(t, "alpha\tcats running\nbeta\tdogs sleeping\n")
	m := metrics.New()

	e, err := Open(context.Background(), cfg, m)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Index.NumDocs())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexDocuments))
	assert.Nil(t, e.Filter)

	exec, err := e.Executor("PL2", nil)
	require.NoError(t, err)
	q, err := e.Builder.Build("Cat")
	require.NoError(t, err)
	results, err := exec.Execute(context.Background(), q, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha", index.DocName(e.Index, results[0].DocID))
}

func TestOpenAppliesExcludedDocuments(t *testing.T) {
	cfg := lineConfig(t, "alpha\tcats\nbeta\tcats\n")
	cfg.Search.ExcludeDocIDs = []uint64{0}

	e, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	exec, err := e.Executor("bm25", nil)
	require.NoError(t, err)
	q, err := e.Builder.Build("cats")
	require.NoError(t, err)

	results, err := exec.Execute(context.Background(), q, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].DocID)
}

func TestOpenSQLiteCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.db")
	rw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = rw.Exec(`CREATE TABLE documents (name TEXT PRIMARY KEY, content TEXT)`)
	require.NoError(t, err)
	_, err = rw.Exec(`INSERT INTO documents (name, content) VALUES ('doc-b', 'ranking'), ('doc-a', 'retrieval')`)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	cfg := &config.Config{Corpus: config.CorpusConfig{
		Type:          config.CorpusSQLite,
		Path:          path,
		Table:         "documents",
		NameColumn:    "name",
		ContentColumn: "content",
	}}
	e, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Index.NumDocs())
	assert.Equal(t, "doc-a", index.DocName(e.Index, 0))
}

func TestOpenConfigurationErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.CorpusConfig
	}{
		{"missing corpus file", config.CorpusConfig{Type: config.CorpusLine, Path: filepath.Join(dir, "none.txt")}},
		{"missing stop words", config.CorpusConfig{Type: config.CorpusLine, Path: filepath.Join(dir, "none.txt"), StopWords: filepath.Join(dir, "stop.txt")}},
		{"unknown corpus type", config.CorpusConfig{Type: "parquet"}},
		{"bad table name", config.CorpusConfig{Type: config.CorpusSQLite, Path: filepath.Join(dir, "none.db"), Table: "x;y", NameColumn: "n", ContentColumn: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), &config.Config{Corpus: tt.cfg}, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrConfiguration)
		})
	}
}

func TestExecutorUnknownRanker(t *testing.T) {
	e, err := Open(context.Background(), lineConfig(t, "a\tb\n"), nil)
	require.NoError(t, err)
	_, err = e.Executor("tfidf", nil)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.ErrorIs(t, err, apperrors.ErrUnknownRanker)
}

func TestNewAnalyzer(t *testing.T) {
	stop := filepath.Join(t.TempDir(), "stop.txt")
	require.NoError(t, os.WriteFile(stop, []byte("cats\n"), 0o644))
	off := false

	an, err := NewAnalyzer(config.CorpusConfig{StopWords: stop, Stem: &off})
	require.NoError(t, err)
	assert.Equal(t, []string{"dogs", "the"}, an.Tokenize("cats dogs the"))
}

func TestExecutorFingerprintCoversConfiguration(t *testing.T) {
	const content = "alpha\tcats\nbeta\tcats\n"
	open := func(cfg *config.Config) *Engine {
		t.Helper()
		e, err := Open(context.Background(), cfg, nil)
		require.NoError(t, err)
		return e
	}
	fingerprint := func(e *Engine, method string, params map[string]float64) string {
		t.Helper()
		exec, err := e.Executor(method, params)
		require.NoError(t, err)
		return exec.Fingerprint()
	}

	base := open(lineConfig(t, content))
	ref := fingerprint(base, "pl2", map[string]float64{"c": 0.5})

	assert.Equal(t, ref, fingerprint(base, "PL2", map[string]float64{"c": 0.5}))
	assert.NotEqual(t, ref, fingerprint(base, "pl2", map[string]float64{"c": 2}))
	assert.NotEqual(t, ref, fingerprint(base, "bm25", nil))

	excluded := lineConfig(t, content)
	excluded.Search.ExcludeDocIDs = []uint64{1}
	assert.NotEqual(t, ref, fingerprint(open(excluded), "pl2", map[string]float64{"c": 0.5}))

	otherCorpus := lineConfig(t, content)
	assert.NotEqual(t, ref, fingerprint(open(otherCorpus), "pl2", map[string]float64{"c": 0.5}),
		"same content at another path is another corpus")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
corpus:
  type: line
  path: /data/corpus.txt
ranker:
  method: bm25
  params:
    k1: 1.5
search:
  numResults: 50
  format: human
  workers: 4
  queryTimeout: 250ms
  excludeDocIDs: [3, 9]
eval:
  qrelsPath: /data/qrels.txt
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/corpus.txt", cfg.Corpus.Path)
	assert.Equal(t, "bm25", cfg.Ranker.Method)
	assert.Equal(t, 1.5, cfg.Ranker.Params["k1"])
	assert.Equal(t, 50, cfg.Search.NumResults)
	assert.Equal(t, "human", cfg.Search.Format)
	assert.Equal(t, 4, cfg.Search.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Search.QueryTimeout)
	assert.Equal(t, []uint64{3, 9}, cfg.Search.ExcludeDocIDs)
	assert.Equal(t, "/data/qrels.txt", cfg.Eval.QrelsPath)

	// untouched sections keep their defaults
	assert.Equal(t, "MeTA", cfg.Search.RunTag)
	assert.Equal(t, 10, cfg.Eval.Depth)
	assert.True(t, cfg.Corpus.Stemming())
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.True(t, IsConfigurationError(err))
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "corpus: [unterminated"))
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	path := writeConfig(t, `
corpus:
  type: csv
ranker:
  method: ""
search:
  numResults: 0
  format: xml
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	msg := err.Error()
	assert.Contains(t, msg, `corpus.type "csv"`)
	assert.Contains(t, msg, "ranker.method is required")
	assert.Contains(t, msg, "search.numResults must be positive")
	assert.Contains(t, msg, `search.format "xml"`)
}

func TestValidateLineCorpusNeedsPath(t *testing.T) {
	_, err := Load(writeConfig(t, "corpus:\n  type: line\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corpus.path is required")
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "corpus:\n  path: corpus.txt\n")
	t.Setenv("RR_RANKER_METHOD", "dirichlet-prior")
	t.Setenv("RR_SEARCH_NUM_RESULTS", "25")
	t.Setenv("RR_SEARCH_WORKERS", "not-a-number")
	t.Setenv("RR_SEARCH_QUERY_TIMEOUT", "2s")
	t.Setenv("RR_REDIS_ENABLED", "true")
	t.Setenv("RR_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dirichlet-prior", cfg.Ranker.Method)
	assert.Equal(t, 25, cfg.Search.NumResults)
	assert.Equal(t, 1, cfg.Search.Workers)
	assert.Equal(t, 2*time.Second, cfg.Search.QueryTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestStemmingCanBeDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "corpus:\n  path: c.txt\n  stem: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Corpus.Stemming())
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "docs", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=docs sslmode=disable", p.DSN())
}

func TestValidateRateLimit(t *testing.T) {
	_, err := Load(writeConfig(t, `
corpus:
  type: line
  path: corpus.txt
server:
  rateLimit: 100
  rateWindow: 0s
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.rateWindow must be positive")

	t.Setenv("RR_SERVER_RATE_LIMIT", "20")
	cfg, err := Load(writeConfig(t, "corpus:\n  type: line\n  path: corpus.txt\n"))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Server.RateLimit)
	assert.Equal(t, time.Minute, cfg.Server.RateWindow)
}

func TestValidateAnalyticsPersist(t *testing.T) {
	_, err := Load(writeConfig(t, `
corpus:
  type: line
  path: corpus.txt
postgres:
  host: ""
analytics:
  persist: true
  snapshotInterval: 0s
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analytics.persist")
	assert.Contains(t, err.Error(), "analytics.snapshotInterval must be positive")

	cfg, err := Load(writeConfig(t, "corpus:\n  type: line\n  path: corpus.txt\nanalytics:\n  persist: true\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Analytics.SnapshotInterval)
}

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"

	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
)

type fixture struct {
	config  string
	queries string
}

func writeFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	corpusPath := write("corpus.txt", "alpha\tcats running fast\nbeta\tdogs running\ngamma\tcats sleeping cats\n")
	return fixture{
		config: write("config.yaml", "logging:\n  level: error\ncorpus:\n  type: line\n  path: "+corpusPath+
			"\nranker:\n  method: pl2\nsearch:\n  numResults: 2\n"),
		queries: write("queries.txt", "cats\n\nzebra\n"),
	}
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	err := makeApp(&stdout).Run(append([]string{appName}, args...))
	return stdout.String(), err
}

func TestUsageOnWrongArgumentCount(t *testing.T) {
	for _, args := range [][]string{nil, {"only-config"}, {"a", "b", "1", "extra"}, {"a", "b", "not-a-number"}} {
		out, err := runApp(t, args...)
		assert.Equal(t, usage+"\n", out)
		var exitErr cli.ExitCoder
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, 1, exitErr.ExitCode())
	}
}

func TestRunWritesTRECLines(t *testing.T) {
	f := writeFixture(t)
	out, err := runApp(t, f.config, f.queries, "5")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)

	names := map[string]bool{}
	for i, line := range lines[:2] {
		fields := strings.Split(line, "\t")
		require.Len(t, fields, 6)
		assert.Equal(t, "5", fields[0], "queries are numbered from the start argument")
		assert.Equal(t, "_", fields[1])
		assert.Equal(t, []string{"1", "2"}[i], fields[3])
		assert.Equal(t, "MeTA", fields[5])
		names[fields[2]] = true
	}
	assert.Equal(t, map[string]bool{"alpha": true, "gamma": true}, names)

	assert.True(t, strings.HasPrefix(lines[2], "Elapsed: "))
	assert.True(t, strings.HasSuffix(lines[2], " seconds"))
}

func TestRunDefaultsStartNumberAndHonoursFlags(t *testing.T) {
	f := writeFixture(t)
	out, err := runApp(t, "--format", "human", "--workers", "3", f.config, f.queries)
	require.NoError(t, err)
	assert.Contains(t, out, "1. ")
	assert.Contains(t, out, "(id=")
	assert.NotContains(t, out, "\t_\t")
}

func TestRunConfigurationError(t *testing.T) {
	f := writeFixture(t)
	_, err := runApp(t, filepath.Join(t.TempDir(), "missing.yaml"), f.queries)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)

	_, err = runApp(t, "--ranker", "tfidf", f.config, f.queries)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestReadQueriesKeepsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.txt")
	require.NoError(t, os.WriteFile(path, []byte(" first \n\nthird\n"), 0o644))
	lines, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "", "third"}, lines)
}

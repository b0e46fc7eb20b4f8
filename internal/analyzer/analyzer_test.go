package analyzer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeNormalisesAndFilters(t *testing.T) {
	a := New()
	got := a.Tokenize("The CATS, and the dogs!  Running x")
	assert.Equal(t, []string{"cat", "dog", "run"}, got)
}

func TestTokenizeKeepsDuplicatesInOrder(t *testing.T) {
	a := New()
	assert.Equal(t, []string{"jump", "fox", "jump"}, a.Tokenize("jumps fox jumping"))
}

func TestStemmedVariantsCollapse(t *testing.T) {
	a := New()
	assert.Equal(t, a.Tokenize("searching"), a.Tokenize("searches"))
}

func TestNFKCFolding(t *testing.T) {
	a := New(WithoutStemming())
	// U+FB01 LATIN SMALL LIGATURE FI
	assert.Equal(t, []string{"file"}, a.Tokenize("ﬁle"))
}

func TestEmptyAndPunctuationOnly(t *testing.T) {
	a := New()
	assert.Empty(t, a.Tokenize(""))
	assert.Empty(t, a.Tokenize("   ... !!! ,,, "))
	assert.Empty(t, a.Tokenize("the and of"))
}

func TestOptions(t *testing.T) {
	a := New(WithStopWords(nil), WithoutStemming(), WithMinLength(1))
	assert.Equal(t, []string{"the", "cats", "a"}, a.Tokenize("The cats a"))
}

func TestAnalyzePositions(t *testing.T) {
	a := New()
	tokens := a.Analyze("quick the brown fox")
	require.Len(t, tokens, 3)
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
	assert.Equal(t, "brown", tokens[1].Term)
}

func TestLoadStopWords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop.txt")
	require.NoError(t, os.WriteFile(path, []byte("# common words\nfox\n\n  Quick \n"), 0o644))

	list, err := LoadStopWords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"fox", "Quick"}, list)

	a := New(WithStopWords(list), WithoutStemming())
	assert.Equal(t, []string{"the", "brown"}, a.Tokenize("the quick brown fox"))

	_, err = LoadStopWords(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

var benchTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"long": strings.Repeat(`Information retrieval systems combine tokenization, stemming and
        stop word removal to normalise text into searchable terms. Ranking functions
        weigh term frequency against document length and collection statistics. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	a := New()
	for name, text := range benchTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = a.Tokenize(text)
			}
		})
	}
}

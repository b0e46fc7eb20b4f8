// Package output renders ranked results as TREC run lines or as a
// human-readable listing.
package output

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/ranked-retrieval/internal/topk"
	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
)

const (
	FormatTREC  = "trec"
	FormatHuman = "human"

	DefaultRunTag = "MeTA"
)

// Namer resolves document metadata; index.Reader satisfies it.
type Namer interface {
	Metadata(docID uint64, key string) (string, bool)
}

type Formatter interface {
	// Format writes the results of one query. Ranks start at 1.
	Format(w io.Writer, queryNum int, results []topk.Result) error
}

// New returns the formatter registered under format.
func New(format string, names Namer, runTag string) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", FormatTREC:
		if runTag == "" {
			runTag = DefaultRunTag
		}
		return TREC{Names: names, Tag: runTag}, nil
	case FormatHuman:
		return Human{Names: names}, nil
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", apperrors.ErrConfiguration, format)
	}
}

// TREC writes `<qnum>\t_\t<docno>\t<rank>\t<score>\t<tag>` lines. Scores
// are written at full precision.
type TREC struct {
	Names Namer
	Tag   string
}

func (f TREC) Format(w io.Writer, queryNum int, results []topk.Result) error {
	for i, r := range results {
		_, err := fmt.Fprintf(w, "%d\t_\t%s\t%d\t%s\t%s\n",
			queryNum,
			docName(f.Names, r.DocID),
			i+1,
			strconv.FormatFloat(r.Score, 'f', -1, 64),
			f.Tag,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Human writes `<rank>. <name> (id=<id>, score=<score>)` lines with the
// score rounded to four decimals.
type Human struct {
	Names Namer
}

func (f Human) Format(w io.Writer, _ int, results []topk.Result) error {
	for i, r := range results {
		if _, err := fmt.Fprintf(w, "%d. %s (id=%d, score=%.4f)\n", i+1, docName(f.Names, r.DocID), r.DocID, r.Score); err != nil {
			return err
		}
	}
	return nil
}

// Elapsed writes the run's closing `Elapsed: <seconds> seconds` line,
// rounded to four decimals and always with a fractional part.
func Elapsed(w io.Writer, d time.Duration) error {
	seconds := strconv.FormatFloat(math.Round(d.Seconds()*1e4)/1e4, 'f', -1, 64)
	if !strings.Contains(seconds, ".") {
		seconds += ".0"
	}
	_, err := fmt.Fprintf(w, "Elapsed: %s seconds\n", seconds)
	return err
}

// docName falls back to the numeric id for documents without a name.
func docName(names Namer, docID uint64) string {
	if names != nil {
		if name, ok := names.Metadata(docID, index.MetaName); ok && name != "" {
			return name
		}
	}
	return strconv.FormatUint(docID, 10)
}

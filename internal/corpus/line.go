package corpus

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const maxLineBytes = 16 * 1024 * 1024

// LineSource reads one document per line. A line of the form
// "<name>\t<content>" names its document; otherwise the document is named
// by its zero-based line number. Blank lines are skipped but still count
// towards numbering.
type LineSource struct {
	Path string
}

func NewLineSource(path string) *LineSource {
	return &LineSource{Path: path}
}

func (s *LineSource) Each(ctx context.Context, fn func(Document) error) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNum := -1
	for scanner.Scan() {
		lineNum++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		doc := Document{Name: strconv.Itoa(lineNum), Content: line}
		if name, content, ok := strings.Cut(line, "\t"); ok {
			doc.Name = strings.TrimSpace(name)
			doc.Content = content
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading corpus file %s: %w", s.Path, err)
	}
	return nil
}

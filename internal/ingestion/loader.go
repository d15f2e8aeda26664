package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/yargevad/filepathx"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/54b3r/docchat/internal/chunker"
)

// DefaultPattern selects every .txt file below the corpus root.
const DefaultPattern = "**/*.txt"

// LoadDir reads every regular file under dir matching pattern (which may use
// "**" to cross directory levels) and returns them as documents ordered by
// relative path. Document.Source is the slash-separated path relative to dir.
func LoadDir(ctx context.Context, dir, pattern string) ([]chunker.Document, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: corpus directory: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("ingestion: corpus directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ingestion: corpus path %q is not a directory", dir)
	}

	matches, err := filepathx.Glob(filepath.Join(root, pattern))
	if err != nil {
		return nil, fmt.Errorf("ingestion: glob %q: %w", pattern, err)
	}
	sort.Strings(matches)

	docs := make([]chunker.Document, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, fmt.Errorf("ingestion: relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)
		if seen[rel] {
			continue
		}
		seen[rel] = true

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("ingestion: read %s: %w", rel, err)
		}
		text, err := decodeText(raw)
		if err != nil {
			return nil, fmt.Errorf("ingestion: decode %s: %w", rel, err)
		}
		docs = append(docs, chunker.Document{Source: rel, Text: text})
	}
	return docs, nil
}

// decodeText detects the encoding of raw: a UTF-8 or UTF-16 byte order mark
// wins, valid UTF-8 is taken as is, and anything else is read as Windows-1252.
func decodeText(raw []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), raw)
	if err != nil {
		return "", err
	}
	if utf8.Valid(out) {
		return string(out), nil
	}
	latin, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(latin), nil
}

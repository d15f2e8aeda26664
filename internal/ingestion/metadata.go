package ingestion

import (
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// InferredMetadata holds the title, category, and format inferred from a
// document's path relative to the corpus root. Every indexed chunk carries
// these as payload fields so answers can cite a readable source.
type InferredMetadata struct {
	// Title is the file stem with separators turned into spaces.
	Title string
	// Category is the first directory under the corpus root ("general" for
	// files at the top level).
	Category string
	// Format is the lowercase file extension without the dot.
	Format string
}

// defaultCategory labels documents that sit directly in the corpus root.
const defaultCategory = "general"

// InferMetadata inspects a slash- or OS-separated relative path and returns
// best-effort metadata. It never fails; unusual paths produce defaults.
//
// Examples:
//
//	courses/python_basics.txt  -> {Python basics, courses, txt}
//	about-cusc.txt             -> {About cusc, general, txt}
func InferMetadata(relPath string) InferredMetadata {
	p := filepath.ToSlash(relPath)
	p = strings.TrimPrefix(p, "./")

	m := InferredMetadata{Category: defaultCategory}

	base := path.Base(p)
	ext := path.Ext(base)
	m.Format = strings.ToLower(strings.TrimPrefix(ext, "."))
	m.Title = titleFromStem(strings.TrimSuffix(base, ext))

	if dir := path.Dir(p); dir != "." && dir != "/" {
		first := strings.SplitN(strings.TrimPrefix(dir, "/"), "/", 2)[0]
		if first != "" && first != ".." {
			m.Category = strings.ToLower(first)
		}
	}
	return m
}

// Fields returns the metadata as payload key/value pairs.
func (m InferredMetadata) Fields() map[string]string {
	return map[string]string{
		"title":    m.Title,
		"category": m.Category,
		"format":   m.Format,
	}
}

// titleFromStem turns "python_basics" or "python-basics" into "Python basics".
func titleFromStem(stem string) string {
	words := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return stem
	}
	title := strings.Join(words, " ")
	r := []rune(title)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

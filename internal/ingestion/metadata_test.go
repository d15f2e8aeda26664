package ingestion

import "testing"

func TestInferMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		title    string
		category string
		format   string
	}{
		{
			name:     "top level file",
			path:     "about-cusc.txt",
			title:    "About cusc",
			category: "general",
			format:   "txt",
		},
		{
			name:     "nested under category",
			path:     "courses/python_basics.txt",
			title:    "Python basics",
			category: "courses",
			format:   "txt",
		},
		{
			name:     "deeply nested keeps first directory",
			path:     "Courses/2024/spring/intro.TXT",
			title:    "Intro",
			category: "courses",
			format:   "txt",
		},
		{
			name:     "leading dot slash",
			path:     "./faq.txt",
			title:    "Faq",
			category: "general",
			format:   "txt",
		},
		{
			name:     "no extension",
			path:     "notes/README",
			title:    "README",
			category: "notes",
			format:   "",
		},
		{
			name:     "stem of only separators",
			path:     "misc/__.txt",
			title:    "__",
			category: "misc",
			format:   "txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := InferMetadata(tt.path)
			if got.Title != tt.title {
				t.Errorf("Title = %q, want %q", got.Title, tt.title)
			}
			if got.Category != tt.category {
				t.Errorf("Category = %q, want %q", got.Category, tt.category)
			}
			if got.Format != tt.format {
				t.Errorf("Format = %q, want %q", got.Format, tt.format)
			}
		})
	}
}

func TestInferredMetadata_Fields(t *testing.T) {
	t.Parallel()

	f := InferMetadata("courses/python.txt").Fields()
	want := map[string]string{"title": "Python", "category": "courses", "format": "txt"}
	for k, v := range want {
		if f[k] != v {
			t.Errorf("Fields()[%q] = %q, want %q", k, f[k], v)
		}
	}
}

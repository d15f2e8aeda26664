package assistant

import "strings"

// Clean strips the emphasis markers the generator emits for bold and italic
// text, which the chat widget would show literally, and trims surrounding
// whitespace. Clean(Clean(s)) == Clean(s) for every s.
func Clean(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, "*", ""))
}

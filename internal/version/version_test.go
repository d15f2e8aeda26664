package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	t.Parallel()

	s := String()
	for _, want := range []string{"docchat", Version, Commit, BuildDate} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

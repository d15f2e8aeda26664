package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

// isolate keeps command tests away from the developer's real config.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCCHAT_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{"serve", "ingest", "ask", "contacts", "version"}
	for _, name := range want {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	isolate(t)

	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "docchat ") {
		t.Errorf("output = %q", out)
	}
}

func TestContactsCmd_Empty(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "none.xlsx")

	out, err := run(t, "contacts", "--file", path)
	if err != nil {
		t.Fatalf("contacts: %v", err)
	}
	if !strings.Contains(out, "no contacts") {
		t.Errorf("output = %q", out)
	}
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	isolate(t)

	if _, err := run(t, "ask"); err == nil {
		t.Error("expected error without a question")
	}
}

func TestIngestCmd_RejectsMemoryIndex(t *testing.T) {
	isolate(t)
	t.Setenv("INDEX_BACKEND", "memory")

	_, err := run(t, "ingest", "--dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "memory") {
		t.Errorf("err = %v, want memory index rejection", err)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example , ,https://b.example")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("splitList = %v", got)
	}
	if splitList("") != nil {
		t.Error("empty input should yield nil")
	}
}

package filter

import (
	"os"
	"path/filepath"
	"testing"
)

func writePatternFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patterns.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFileStripsCommentsAndBlankLines(t *testing.T) {
	path := writePatternFile(t, "build/*.tmp  # scratch files\n\n  cache/*.bak :: backups\nlogs/*.log // noisy\n")
	patterns, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"build/*.tmp", "cache/*.bak", "logs/*.log"}
	if len(patterns) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, patterns)
	}
	for i, e := range expected {
		if patterns[i] != e {
			t.Fatalf("expected %v, got %v", expected, patterns)
		}
	}
}

func TestParseFileRejectsLeadingStar(t *testing.T) {
	path := writePatternFile(t, "*\n")
	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected leading-* pattern to be rejected as ambiguous")
	}
}

func TestMatcherGlob(t *testing.T) {
	m, err := NewMatcher([]string{"*.tmp", "build"})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := m.Match("scratch.tmp")
	if err != nil || !ok {
		t.Fatalf("expected scratch.tmp to match *.tmp, err=%v ok=%v", err, ok)
	}
	ok, err = m.Match("build/output.bin")
	if err != nil || !ok {
		t.Fatalf("expected file under build/ to match via parent, err=%v ok=%v", err, ok)
	}
	ok, err = m.Match("keep.txt")
	if err != nil || ok {
		t.Fatalf("expected keep.txt not to match, err=%v ok=%v", err, ok)
	}
}

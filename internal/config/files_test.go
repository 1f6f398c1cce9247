package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sirkon/deepequal"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolveFilesWithGlobs(t *testing.T) {
	root := t.TempDir()
	top := filepath.Join(root, "top.c")
	nested := filepath.Join(root, "src", "deep", "nested.c")
	pre := filepath.Join(root, "src", "pre.i")
	skipped := filepath.Join(root, "src", "gen", "skip.c")
	writeFile(t, top, "int a;\n")
	writeFile(t, nested, "int b;\n")
	writeFile(t, pre, "int c;\n")
	writeFile(t, skipped, "int d;\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "x\n")

	cfg := Config{Facts: FactsConfig{
		Files:   []string{"*.c", "**/*.c", "src/*.i", "*.txt"},
		Exclude: []string{"src/gen/*.c"},
	}}

	got, err := cfg.ResolveFiles(root)
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	want := []string{nested, pre, top}
	if !reflect.DeepEqual(want, got) {
		deepequal.SideBySide(t, "files", want, got)
		t.FailNow()
	}
}

func TestMatchSuffix(t *testing.T) {
	sep := string(filepath.Separator)
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"a.c", "*.c", true},
		{"x" + sep + "a.c", "*.c", true},
		{"x" + sep + "a.h", "*.c", false},
		{"x" + sep + "y" + sep + "a.c", "y" + sep + "*.c", true},
		{"x" + sep + "z" + sep + "a.c", "y" + sep + "*.c", false},
	}
	for _, tt := range tests {
		if got := matchSuffix(tt.path, tt.pattern); got != tt.want {
			t.Fatalf("matchSuffix(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}

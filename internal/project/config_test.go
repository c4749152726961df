package project

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestName)
	writeFile(t, path, "[memory]\nmin_pages = 2\n\n[build]\njobs = 3\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Memory.MinPages != 2 || cfg.Memory.MaxPages != 2 {
		t.Fatalf("memory = %+v, want 2/2", cfg.Memory)
	}
	if cfg.Output.EntryExport != "_start" || !cfg.Build.Cache || cfg.Build.Jobs != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Root != dir {
		t.Fatalf("Root = %q, want %q", cfg.Root, dir)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"unknown key", "[memory]\npages = 3\n", ErrUnknownKey},
		{"max below min", "[memory]\nmin_pages = 4\nmax_pages = 2\n", ErrInvalidValue},
		{"zero min", "[memory]\nmin_pages = 0\n", ErrInvalidValue},
		{"empty entry", "[output]\nentry_export = \" \"\n", ErrInvalidValue},
		{"negative jobs", "[build]\njobs = -1\n", ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ManifestName)
			writeFile(t, path, tt.body)
			if _, err := Load(path); !errors.Is(err, tt.want) {
				t.Fatalf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestName), "[output]\nentry_export = \"main\"\n")
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, ok, err := Discover(nested)
	if err != nil || !ok {
		t.Fatalf("Discover: ok=%v err=%v", ok, err)
	}
	if cfg.Output.EntryExport != "main" {
		t.Fatalf("entry = %q", cfg.Output.EntryExport)
	}
}

func TestDiscoverWithoutManifest(t *testing.T) {
	cfg, ok, err := Discover(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// A manifest in a parent of the temp dir would make this test flaky;
	// only check the defaults when none was found.
	if !ok && cfg.Memory != Default().Memory {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestInputsExpandsRoots(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"src/a.kast", "src/sub/b.kast", "src/notes.txt", "extra/c.kast"} {
		writeFile(t, filepath.Join(dir, f), "")
	}
	cfg := Default()
	cfg.Root = dir
	cfg.Build.Roots = []string{"src", "extra/*.kast", "src/a.kast"}

	got, err := cfg.Inputs()
	if err != nil {
		t.Fatalf("Inputs: %v", err)
	}
	want := []string{
		filepath.Join(dir, "extra", "c.kast"),
		filepath.Join(dir, "src", "a.kast"),
		filepath.Join(dir, "src", "sub", "b.kast"),
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Inputs() = %v, want %v", got, want)
	}
}

func TestInputsRejectsEscapingRoot(t *testing.T) {
	cfg := Default()
	cfg.Root = t.TempDir()
	cfg.Build.Roots = []string{"../elsewhere"}
	if _, err := cfg.Inputs(); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("error = %v", err)
	}
}

func TestOutputPath(t *testing.T) {
	cfg := Default()
	cfg.Root = "/proj"
	cfg.Output.Dir = "out"
	if got := cfg.OutputPath("/proj/src/main.kast"); got != filepath.Join("/proj", "out", "main.wasm") {
		t.Fatalf("OutputPath = %q", got)
	}
}

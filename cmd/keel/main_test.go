package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"keel/internal/ast"
	"keel/internal/testkit"
)

func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeProject(t *testing.T, programs map[string]*ast.Program) (dir, config string) {
	t.Helper()
	dir = t.TempDir()
	config = filepath.Join(dir, "keel.toml")
	if err := os.WriteFile(config, []byte("[output]\ndir = \"out\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	for name, p := range programs {
		if err := ast.WriteFile(filepath.Join(dir, name+".kast"), p); err != nil {
			t.Fatal(err)
		}
	}
	return dir, config
}

func TestBuildWritesModule(t *testing.T) {
	dir, config := writeProject(t, map[string]*ast.Program{"add": testkit.Add()})
	stdout, stderr, err := runCLI(t, "--config", config, "--color", "off", "--no-cache",
		"build", filepath.Join(dir, "add.kast"))
	if err != nil {
		t.Fatalf("build: %v\n%s", err, stderr)
	}
	out := filepath.Join(dir, "out", "add.wasm")
	bin, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(bin, []byte("\x00asm")) {
		t.Fatalf("output is not a wasm module: % x", bin[:min(8, len(bin))])
	}
	if !strings.Contains(stdout, "add.wasm") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestBuildReportsDiagnostics(t *testing.T) {
	dir, config := writeProject(t, map[string]*ast.Program{"cycle": testkit.Cycle()})
	_, stderr, err := runCLI(t, "--config", config, "--color", "off", "--no-cache",
		"build", filepath.Join(dir, "cycle.kast"))
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(stderr, "LAY4101") {
		t.Fatalf("stderr missing circular layout diagnostic:\n%s", stderr)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out", "cycle.wasm")); !os.IsNotExist(statErr) {
		t.Fatalf("module written despite errors: %v", statErr)
	}
}

func TestIRPrintsFunctions(t *testing.T) {
	dir, config := writeProject(t, map[string]*ast.Program{"sum": testkit.Sum()})
	stdout, stderr, err := runCLI(t, "--config", config, "--color", "off",
		"ir", filepath.Join(dir, "sum.kast"))
	if err != nil {
		t.Fatalf("ir: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "export=sum") {
		t.Fatalf("ir output lacks the sum export:\n%s", stdout)
	}
}

func TestVersionJSON(t *testing.T) {
	stdout, _, err := runCLI(t, "version", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var payload versionPayload
	if err := json.Unmarshal([]byte(stdout), &payload); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if payload.Tool != "keel" || payload.Version == "" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestBuildClearCache(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Cleanup(func() { _ = buildCmd.Flags().Set("clear-cache", "false") })
	dir, config := writeProject(t, map[string]*ast.Program{"add": testkit.Add()})
	input := filepath.Join(dir, "add.kast")
	build := func(extra ...string) string {
		t.Helper()
		args := append([]string{"--config", config, "--color", "off", "--no-cache=false", "build"}, extra...)
		stdout, stderr, err := runCLI(t, append(args, input)...)
		if err != nil {
			t.Fatalf("build %v: %v\n%s", extra, err, stderr)
		}
		return stdout
	}

	if out := build(); strings.Contains(out, "(cached)") {
		t.Fatalf("cold build hit the cache: %q", out)
	}
	if out := build(); !strings.Contains(out, "(cached)") {
		t.Fatalf("warm build missed the cache: %q", out)
	}
	if out := build("--clear-cache"); strings.Contains(out, "(cached)") {
		t.Fatalf("build after clearing hit the cache: %q", out)
	}
}

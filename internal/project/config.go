// Package project loads keel.toml and resolves the inputs and outputs of a
// build from it.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// InputExt is the extension of typed-AST inputs found under build roots.
const InputExt = ".kast"

// MaxPages is the largest memory a 32-bit module can address.
const MaxPages = 65536

// Config is a decoded keel.toml.
type Config struct {
	Memory MemoryConfig `toml:"memory"`
	Output OutputConfig `toml:"output"`
	Build  BuildConfig  `toml:"build"`

	// Root is the directory holding the manifest; empty for defaults.
	Root string `toml:"-"`
}

type MemoryConfig struct {
	MinPages uint32 `toml:"min_pages"`
	MaxPages uint32 `toml:"max_pages"`
}

type OutputConfig struct {
	EntryExport string `toml:"entry_export"`
	Dir         string `toml:"dir"`
}

type BuildConfig struct {
	// Roots are files, directories or glob patterns relative to Root.
	Roots []string `toml:"roots"`
	Jobs  int      `toml:"jobs"`
	Cache bool     `toml:"cache"`
}

var (
	ErrUnknownKey   = errors.New("unknown key")
	ErrInvalidValue = errors.New("invalid value")
)

// Default is the configuration used when no keel.toml exists.
func Default() Config {
	return Config{
		Memory: MemoryConfig{MinPages: 1, MaxPages: 1},
		Output: OutputConfig{EntryExport: "_start", Dir: "."},
		Build:  BuildConfig{Cache: true},
	}
}

// Load parses the manifest at path. Keys it leaves out keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: %w %q", path, ErrUnknownKey, undecoded[0].String())
	}
	// A lone min_pages raises the maximum with it.
	if meta.IsDefined("memory", "min_pages") && !meta.IsDefined("memory", "max_pages") {
		cfg.Memory.MaxPages = cfg.Memory.MinPages
	}
	cfg.Output.EntryExport = strings.TrimSpace(cfg.Output.EntryExport)
	cfg.Root = filepath.Dir(path)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest keel.toml above startDir, or returns Default
// with ok == false.
func Discover(startDir string) (cfg Config, ok bool, err error) {
	path, ok, err := FindManifest(startDir)
	if err != nil {
		return Config{}, false, err
	}
	if !ok {
		return Default(), false, nil
	}
	cfg, err = Load(path)
	return cfg, true, err
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Memory.MinPages == 0:
		return fmt.Errorf("%w: [memory].min_pages must be at least 1", ErrInvalidValue)
	case c.Memory.MaxPages < c.Memory.MinPages:
		return fmt.Errorf("%w: [memory].max_pages %d is below min_pages %d", ErrInvalidValue, c.Memory.MaxPages, c.Memory.MinPages)
	case c.Memory.MaxPages > MaxPages:
		return fmt.Errorf("%w: [memory].max_pages exceeds %d", ErrInvalidValue, MaxPages)
	case c.Output.EntryExport == "":
		return fmt.Errorf("%w: [output].entry_export is empty", ErrInvalidValue)
	case c.Build.Jobs < 0:
		return fmt.Errorf("%w: [build].jobs is negative", ErrInvalidValue)
	}
	return nil
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

// Inputs expands [build].roots into a sorted, duplicate-free list of input
// files. Roots must stay inside the project.
func (c *Config) Inputs() ([]string, error) {
	var out []string
	for _, root := range c.Build.Roots {
		pattern := c.abs(filepath.FromSlash(strings.TrimSpace(root)))
		if c.Root != "" && !pathWithin(c.Root, pattern) {
			return nil, fmt.Errorf("%w: build root %q escapes %s", ErrInvalidValue, root, c.Root)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("build root %q: %w", root, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("build root %q: %w", root, os.ErrNotExist)
		}
		for _, m := range matches {
			files, err := collect(m)
			if err != nil {
				return nil, err
			}
			out = append(out, files...)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func collect(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, InputExt) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

// OutputPath names the module written for input: its base name with a
// .wasm extension inside [output].dir.
func (c *Config) OutputPath(input string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(c.abs(c.Output.Dir), base+".wasm")
}

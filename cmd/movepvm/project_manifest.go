package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	manifestName        = "movepvm.toml"
	noManifestMessage   = "no movepvm.toml found\nplease specify the unit explicitly, e.g.:\n  movepvm build path/to/unit.mpk"
	defaultBuildProfile = "release"
)

type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
}

type projectConfig struct {
	Package packageConfig `toml:"package"`
	Build   buildConfig   `toml:"build"`
}

type packageConfig struct {
	Name string `toml:"name"`
}

type buildConfig struct {
	Input         string `toml:"input"`
	Profile       string `toml:"profile"`
	Jobs          int    `toml:"jobs"`
	RuntimeObject string `toml:"runtime_object"`
	Clang         string `toml:"clang"`
	LDLLD         string `toml:"ld_lld"`
	Polkatool     string `toml:"polkatool"`
	KeepTmp       bool   `toml:"keep_tmp"`
}

func findManifest(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, manifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	manifestPath, ok, err := findManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := loadProjectConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &projectManifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

func loadProjectConfig(path string) (projectConfig, error) {
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return projectConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return projectConfig{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if !meta.IsDefined("package") {
		return projectConfig{}, fmt.Errorf("%s: missing [package]", path)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return projectConfig{}, fmt.Errorf("%s: missing [package].name", path)
	}
	if !meta.IsDefined("build") {
		return projectConfig{}, fmt.Errorf("%s: missing [build]", path)
	}
	if !meta.IsDefined("build", "input") || strings.TrimSpace(cfg.Build.Input) == "" {
		return projectConfig{}, fmt.Errorf("%s: missing [build].input", path)
	}
	if !meta.IsDefined("build", "profile") {
		cfg.Build.Profile = defaultBuildProfile
	}
	switch cfg.Build.Profile {
	case "debug", "release":
	default:
		return projectConfig{}, fmt.Errorf("%s: [build].profile must be debug or release, got %q", path, cfg.Build.Profile)
	}
	if cfg.Build.Jobs < 0 {
		return projectConfig{}, fmt.Errorf("%s: [build].jobs must not be negative", path)
	}
	return cfg, nil
}

// inputPath resolves [build].input against the manifest directory.
func (m *projectManifest) inputPath() (string, error) {
	p := filepath.Join(m.Root, filepath.FromSlash(strings.TrimSpace(m.Config.Build.Input)))
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: [build].input path does not exist: %s", m.Path, p)
		}
		return "", fmt.Errorf("%s: failed to stat [build].input: %w", m.Path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s: [build].input must be a unit file", m.Path)
	}
	return p, nil
}

// resolvePath makes a manifest-relative path absolute; bare tool names stay
// as they are for PATH lookup.
func (m *projectManifest) resolvePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) || !strings.ContainsAny(p, "/"+string(filepath.Separator)) {
		return p
	}
	return filepath.Join(m.Root, filepath.FromSlash(p))
}

// resolveInput picks the unit from an explicit argument or the manifest.
func resolveInput(args []string) (string, *projectManifest, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil, nil
	}
	manifest, ok, err := loadProjectManifest(".")
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, errors.New(noManifestMessage)
	}
	input, err := manifest.inputPath()
	if err != nil {
		return "", nil, err
	}
	return input, manifest, nil
}

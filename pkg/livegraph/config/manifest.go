package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Manifest is the typed project file (livegraph.yaml) describing one
// live session: what source to watch, how to build it, the audio stream
// format, and where state lives. Every field can be overridden by a
// LIVEGRAPH_* environment variable, which wins over the file.
type Manifest struct {
	// Source is the watched chain source file. Required.
	Source string `yaml:"source" env:"LIVEGRAPH_SOURCE"`

	// BuildDir receives compiled artifacts. Defaults to a
	// .livegraph-build directory next to the source.
	BuildDir string `yaml:"build_dir" env:"LIVEGRAPH_BUILD_DIR"`

	// BuildCommand is the compile command template. ${src}, ${out}, and
	// ${build_dir} expand per build; ${include_flags} and ${lib_flags}
	// splice in the discovered paths.
	BuildCommand []string `yaml:"build_command" env:"LIVEGRAPH_BUILD_COMMAND" envSeparator:" "`

	// IncludePaths, LibraryPaths, and Libraries feed the builder's flag
	// splices for toolchains that want them.
	IncludePaths []string `yaml:"include_paths" env:"LIVEGRAPH_INCLUDE_PATHS" envSeparator:":"`
	LibraryPaths []string `yaml:"library_paths" env:"LIVEGRAPH_LIBRARY_PATHS" envSeparator:":"`
	Libraries    []string `yaml:"libraries" env:"LIVEGRAPH_LIBRARIES" envSeparator:","`

	// AddonsDir, when set, is scanned for addon subdirectories whose
	// include/ and lib/ folders extend the search paths.
	AddonsDir string `yaml:"addons_dir" env:"LIVEGRAPH_ADDONS_DIR"`

	// WatchInterval is how often the source is polled for changes.
	WatchInterval time.Duration `yaml:"watch_interval" env:"LIVEGRAPH_WATCH_INTERVAL"`

	// KeepArtifacts is how many compiled artifacts are retained.
	KeepArtifacts int `yaml:"keep_artifacts" env:"LIVEGRAPH_KEEP_ARTIFACTS"`

	// Audio stream format.
	SampleRate  int `yaml:"sample_rate" env:"LIVEGRAPH_SAMPLE_RATE"`
	Channels    int `yaml:"channels" env:"LIVEGRAPH_CHANNELS"`
	BlockFrames int `yaml:"block_frames" env:"LIVEGRAPH_BLOCK_FRAMES"`

	// StatePath is the SQLite snapshot database. Empty keeps state in
	// memory only (it survives reloads, not restarts).
	StatePath string `yaml:"state_path" env:"LIVEGRAPH_STATE_PATH"`

	// ParamSidecar enables the parameter sidecar file next to the
	// source, reapplied after every reload.
	ParamSidecar bool `yaml:"param_sidecar" env:"LIVEGRAPH_PARAM_SIDECAR"`

	// Settings is a freeform block handed to the running chain.
	Settings map[string]any `yaml:"settings" env:"-"`
}

// Default returns a manifest with working defaults for everything but
// Source.
func Default() Manifest {
	return Manifest{
		BuildCommand:  []string{"go", "build", "-buildmode=plugin", "-o", "${out}", "${src}"},
		WatchInterval: 500 * time.Millisecond,
		KeepArtifacts: 3,
		SampleRate:    48000,
		Channels:      2,
		BlockFrames:   512,
	}
}

// LoadManifest reads a manifest file, overlays LIVEGRAPH_* environment
// variables, resolves relative paths against the manifest's directory,
// and validates the result.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	m := Default()
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := env.Parse(&m); err != nil {
		return Manifest{}, fmt.Errorf("apply environment overrides: %w", err)
	}

	m.resolvePaths(filepath.Dir(path))
	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// resolvePaths anchors relative paths at base so a manifest behaves
// the same regardless of the host's working directory.
func (m *Manifest) resolvePaths(base string) {
	m.Source = resolvePath(base, m.Source)
	m.AddonsDir = resolvePath(base, m.AddonsDir)
	if m.StatePath != ":memory:" {
		m.StatePath = resolvePath(base, m.StatePath)
	}
	if m.BuildDir == "" && m.Source != "" {
		m.BuildDir = filepath.Join(filepath.Dir(m.Source), ".livegraph-build")
	} else {
		m.BuildDir = resolvePath(base, m.BuildDir)
	}
	for i, p := range m.IncludePaths {
		m.IncludePaths[i] = resolvePath(base, p)
	}
	for i, p := range m.LibraryPaths {
		m.LibraryPaths[i] = resolvePath(base, p)
	}
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Validate checks that the manifest describes a runnable session.
func (m Manifest) Validate() error {
	if m.Source == "" {
		return fmt.Errorf("source is required")
	}
	if len(m.BuildCommand) == 0 {
		return fmt.Errorf("build_command cannot be empty")
	}
	if m.WatchInterval <= 0 {
		return fmt.Errorf("watch_interval must be positive, got %s", m.WatchInterval)
	}
	if m.KeepArtifacts < 1 {
		return fmt.Errorf("keep_artifacts must be at least 1, got %d", m.KeepArtifacts)
	}
	if m.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", m.SampleRate)
	}
	if m.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", m.Channels)
	}
	if m.BlockFrames <= 0 {
		return fmt.Errorf("block_frames must be positive, got %d", m.BlockFrames)
	}
	return nil
}

// SettingsConfig returns the freeform settings block as a Config.
func (m Manifest) SettingsConfig() Config {
	return New(m.Settings)
}

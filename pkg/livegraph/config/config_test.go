package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/livegraph/pkg/livegraph/config"
)

// TestNew verifies Config creation from maps.
func TestNew(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{"nil map", nil},
		{"empty map", map[string]any{}},
		{"with values", map[string]any{"key": "value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.NotNil(t, cfg)
		})
	}
}

// TestString verifies string extraction with defaults.
func TestString(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal string
		want       string
	}{
		{"key exists", map[string]any{"scale": "minor"}, "scale", "default", "minor"},
		{"key missing", map[string]any{"other": "value"}, "scale", "default", "default"},
		{"empty string", map[string]any{"scale": ""}, "scale", "default", ""},
		{"wrong type int", map[string]any{"scale": 123}, "scale", "default", "default"},
		{"wrong type bool", map[string]any{"scale": true}, "scale", "default", "default"},
		{"nil map", nil, "scale", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.String(tt.key, tt.defaultVal))
		})
	}
}

// TestBool verifies bool extraction with defaults.
func TestBool(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal bool
		want       bool
	}{
		{"true value", map[string]any{"loop": true}, "loop", false, true},
		{"false value", map[string]any{"loop": false}, "loop", true, false},
		{"key missing", map[string]any{}, "loop", true, true},
		{"wrong type string", map[string]any{"loop": "true"}, "loop", false, false},
		{"wrong type int", map[string]any{"loop": 1}, "loop", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Bool(tt.key, tt.defaultVal))
		})
	}
}

// TestInt verifies integer extraction with various input types.
func TestInt(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal int
		want       int
	}{
		{"int value", map[string]any{"bpm": 128}, "bpm", 120, 128},
		{"int64 value", map[string]any{"bpm": int64(140)}, "bpm", 120, 140},
		{"whole float64", map[string]any{"bpm": 90.0}, "bpm", 120, 90},
		{"fractional float64", map[string]any{"bpm": 90.5}, "bpm", 120, 120},
		{"key missing", map[string]any{}, "bpm", 120, 120},
		{"wrong type string", map[string]any{"bpm": "128"}, "bpm", 120, 120},
		{"zero value", map[string]any{"bpm": 0}, "bpm", 120, 0},
		{"negative", map[string]any{"bpm": -4}, "bpm", 120, -4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Int(tt.key, tt.defaultVal))
		})
	}
}

// TestFloat verifies float extraction with various input types.
func TestFloat(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal float64
		want       float64
	}{
		{"float64 value", map[string]any{"gain": 0.5}, "gain", 1.0, 0.5},
		{"int value", map[string]any{"gain": 2}, "gain", 1.0, 2.0},
		{"int64 value", map[string]any{"gain": int64(3)}, "gain", 1.0, 3.0},
		{"key missing", map[string]any{}, "gain", 1.0, 1.0},
		{"wrong type string", map[string]any{"gain": "0.5"}, "gain", 1.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.InDelta(t, tt.want, cfg.Float(tt.key, tt.defaultVal), 0.001)
		})
	}
}

// TestDuration verifies duration extraction with various input types.
func TestDuration(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal time.Duration
		want       time.Duration
	}{
		{"string duration", map[string]any{"fade": "30s"}, "fade", time.Second, 30 * time.Second},
		{"string complex", map[string]any{"fade": "1m30s"}, "fade", time.Second, 90 * time.Second},
		{"string invalid", map[string]any{"fade": "soon"}, "fade", time.Second, time.Second},
		{"int seconds", map[string]any{"fade": 60}, "fade", time.Second, 60 * time.Second},
		{"int64 seconds", map[string]any{"fade": int64(45)}, "fade", time.Second, 45 * time.Second},
		{"float64 seconds", map[string]any{"fade": 0.5}, "fade", time.Second, 500 * time.Millisecond},
		{"time.Duration value", map[string]any{"fade": 2 * time.Second}, "fade", time.Second, 2 * time.Second},
		{"key missing", map[string]any{}, "fade", time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Duration(tt.key, tt.defaultVal))
		})
	}
}

// TestStringSlice verifies string slice extraction.
func TestStringSlice(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal []string
		want       []string
	}{
		{
			"[]string value",
			map[string]any{"banks": []string{"a", "b"}},
			"banks", []string{"default"}, []string{"a", "b"},
		},
		{
			"[]any with strings",
			map[string]any{"banks": []any{"x", "y"}},
			"banks", []string{"default"}, []string{"x", "y"},
		},
		{
			"[]any with mixed types",
			map[string]any{"banks": []any{"a", 123}},
			"banks", []string{"default"}, []string{"default"},
		},
		{
			"key missing",
			map[string]any{},
			"banks", []string{"default"}, []string{"default"},
		},
		{
			"wrong type string",
			map[string]any{"banks": "not-a-slice"},
			"banks", []string{"default"}, []string{"default"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.StringSlice(tt.key, tt.defaultVal))
		})
	}
}

// TestSub verifies nested block access.
func TestSub(t *testing.T) {
	cfg := config.New(map[string]any{
		"oscillator": map[string]any{
			"freq": 440.0,
			"wave": "saw",
		},
		"bpm": 128,
	})

	osc := cfg.Sub("oscillator")
	assert.InDelta(t, 440.0, osc.Float("freq", 0), 0.001)
	assert.Equal(t, "saw", osc.String("wave", ""))

	// Missing and non-map keys yield an empty, usable Config.
	assert.Equal(t, 7, cfg.Sub("missing").Int("x", 7))
	assert.Equal(t, 7, cfg.Sub("bpm").Int("x", 7))

	// Sub of a Sub works when the nested value is already a Config.
	nested := config.New(map[string]any{"outer": config.New(map[string]any{"k": "v"})})
	assert.Equal(t, "v", nested.Sub("outer").String("k", ""))
}

// TestAny verifies raw value extraction.
func TestAny(t *testing.T) {
	cfg := config.New(map[string]any{"raw": []int{1, 2}})

	assert.Equal(t, []int{1, 2}, cfg.Any("raw", nil))
	assert.Equal(t, "fallback", cfg.Any("missing", "fallback"))
}

// TestHas verifies key presence checks.
func TestHas(t *testing.T) {
	cfg := config.New(map[string]any{"present": nil})

	assert.True(t, cfg.Has("present"), "a nil value still counts as present")
	assert.False(t, cfg.Has("absent"))
}

// TestFromYAML verifies YAML parsing into a Config.
func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
bpm: 128
scale: minor
oscillator:
  freq: 440
  wave: saw
banks:
  - a
  - b
`))
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.Int("bpm", 0))
	assert.Equal(t, "minor", cfg.String("scale", ""))
	assert.InDelta(t, 440.0, cfg.Sub("oscillator").Float("freq", 0), 0.001)
	assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("banks", nil))
}

// TestFromYAML_Invalid verifies malformed YAML is an error.
func TestFromYAML_Invalid(t *testing.T) {
	_, err := config.FromYAML([]byte("::: {{{"))
	assert.Error(t, err)
}

// TestFromJSON verifies JSON parsing into a Config.
func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"bpm": 128, "oscillator": {"wave": "saw"}}`))
	require.NoError(t, err)

	// JSON numbers decode as float64; Int converts whole values.
	assert.Equal(t, 128, cfg.Int("bpm", 0))
	assert.Equal(t, "saw", cfg.Sub("oscillator").String("wave", ""))
}

// TestFromJSON_Invalid verifies malformed JSON is an error.
func TestFromJSON_Invalid(t *testing.T) {
	_, err := config.FromJSON([]byte("{"))
	assert.Error(t, err)
}

// TestFromFile verifies extension-based format detection.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("bpm: 128"), 0o644))
	jsonPath := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"bpm": 90}`), 0o644))
	txtPath := filepath.Join(dir, "settings.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("bpm=1"), 0o644))

	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Int("bpm", 0))

	cfg, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Int("bpm", 0))

	_, err = config.FromFile(txtPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file extension")

	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

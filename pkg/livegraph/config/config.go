package config

import (
	"time"
)

// Config is a freeform settings map with typed accessors. All accessors
// return the caller's default when the key is missing or the value
// cannot be converted, so chain code can read settings without type
// assertions or nil checks. A nil Config is valid and behaves as empty.
type Config map[string]any

// New creates a Config from the given map. A nil map yields an empty
// Config.
func New(data map[string]any) Config {
	if data == nil {
		return Config{}
	}
	return Config(data)
}

// String returns the string value for key, or defaultVal if missing or
// not a string.
func (c Config) String(key, defaultVal string) string {
	if s, ok := c[key].(string); ok {
		return s
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or
// not a bool.
func (c Config) Bool(key string, defaultVal bool) bool {
	if b, ok := c[key].(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or
// not convertible.
//
// Accepts:
//   - int: used directly
//   - int64: converted to int
//   - float64: converted only when it has no fractional part
func (c Config) Int(key string, defaultVal int) int {
	switch val := c[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the float64 value for key, or defaultVal if missing or
// not convertible.
//
// Accepts:
//   - float64: used directly
//   - int: converted to float64
//   - int64: converted to float64
func (c Config) Float(key string, defaultVal float64) float64 {
	switch val := c[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// Duration returns the duration value for key, or defaultVal if missing
// or invalid.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int, int64, float64: interpreted as seconds
//   - time.Duration: used directly
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	switch val := c[key].(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case float64:
		return time.Duration(val * float64(time.Second))
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case time.Duration:
		return val
	}
	return defaultVal
}

// StringSlice returns the string slice for key, or defaultVal if
// missing or not convertible.
//
// Accepts:
//   - []string: used directly
//   - []any: converted when every element is a string
func (c Config) StringSlice(key string, defaultVal []string) []string {
	switch val := c[key].(type) {
	case []string:
		return val
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			result = append(result, s)
		}
		return result
	}
	return defaultVal
}

// Sub returns the nested Config under key, or an empty Config if the
// key is missing or not a map. YAML decoding produces map[string]any
// for nested blocks, so per-operator settings read naturally:
//
//	freq := cfg.Sub("oscillator").Float("freq", 440)
func (c Config) Sub(key string) Config {
	switch val := c[key].(type) {
	case map[string]any:
		return Config(val)
	case Config:
		return val
	}
	return Config{}
}

// Any returns the raw value for key, or defaultVal if missing.
func (c Config) Any(key string, defaultVal any) any {
	if v, ok := c[key]; ok {
		return v
	}
	return defaultVal
}

// Has reports whether the key exists.
func (c Config) Has(key string) bool {
	_, ok := c[key]
	return ok
}

/*
Package config loads livegraph project manifests and freeform settings.

# Manifest

A manifest (conventionally livegraph.yaml) describes one live session:
the watched source, the build command, artifact retention, the audio
stream format, and state persistence. Load it with:

	m, err := config.LoadManifest("livegraph.yaml")
	if err != nil {
	    log.Fatal(err)
	}

Every manifest field can be overridden by a LIVEGRAPH_* environment
variable (LIVEGRAPH_SOURCE, LIVEGRAPH_SAMPLE_RATE, ...), which takes
precedence over the file. Relative paths are resolved against the
manifest's directory.

# Settings

The manifest's settings block is freeform and reaches the running chain
untouched. Config wraps such a map with typed accessors that return the
caller's default on a missing key or a type mismatch:

	cfg := config.New(map[string]any{
	    "bpm":     120,
	    "palette": "dusk",
	})

	bpm := cfg.Float("bpm", 60)              // 120
	name := cfg.String("palette", "default") // "dusk"
	gain := cfg.Sub("mixer").Float("gain", 1)

Duration accepts time.ParseDuration strings or bare numbers of seconds.
Int refuses float values with a fractional part rather than truncating.

# Thread Safety

Config is safe for concurrent reads. The underlying map must not be
modified after creation.
*/
package config

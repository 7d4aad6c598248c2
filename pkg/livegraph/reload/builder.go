package reload

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// Builder compiles a chain source into a loadable artifact. Build
// returns the combined compiler output either way; on failure the
// output carries the diagnostics the author needs.
type Builder interface {
	Build(ctx context.Context, source, output string) (string, error)
}

// CommandBuilder runs an external compile command. The command is an
// argv template: ${src}, ${out}, and ${build_dir} expand in place, and
// the standalone elements ${include_flags} and ${lib_flags} splice in
// the configured search paths. An unknown variable fails the build
// rather than silently passing "${typo}" to the compiler.
type CommandBuilder struct {
	// Command is the argv template. Defaults to building a Go plugin.
	Command []string

	// IncludePaths, LibraryPaths, and Libraries fill the flag splices.
	IncludePaths []string
	LibraryPaths []string
	Libraries    []string

	// Flag prefixes for the splices. Defaults: -I, -L, -l.
	IncludeFlag string
	LibPathFlag string
	LibFlag     string

	// Env entries are appended to the host environment.
	Env []string

	// Dir is the subprocess working directory ("" inherits the host's).
	Dir string
}

// NewCommandBuilder creates a builder for the given argv template. An
// empty template defaults to compiling a Go plugin:
//
//	go build -buildmode=plugin -o ${out} ${src}
func NewCommandBuilder(command ...string) *CommandBuilder {
	if len(command) == 0 {
		command = []string{"go", "build", "-buildmode=plugin", "-o", "${out}", "${src}"}
	}
	return &CommandBuilder{Command: command}
}

// DiscoverAddons scans dir for addon subdirectories and appends each
// one's include/ and lib/ folders (when present) to the search paths.
// Returns the number of addons found. A missing dir is not an error;
// the project simply has no addons.
func (b *CommandBuilder) DiscoverAddons(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	found := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		addon := filepath.Join(dir, e.Name())
		hit := false
		if inc := filepath.Join(addon, "include"); dirExists(inc) {
			b.IncludePaths = append(b.IncludePaths, inc)
			hit = true
		}
		if lib := filepath.Join(addon, "lib"); dirExists(lib) {
			b.LibraryPaths = append(b.LibraryPaths, lib)
			hit = true
		}
		if hit {
			found++
		}
	}
	return found
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// Build implements Builder. The subprocess is killed when ctx is
// canceled, which is how an in-flight build gets superseded by a newer
// change.
func (b *CommandBuilder) Build(ctx context.Context, source, output string) (string, error) {
	args, err := b.expandCommand(source, output)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", fmt.Errorf("empty build command")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = b.Dir
	if len(b.Env) > 0 {
		cmd.Env = append(os.Environ(), b.Env...)
	}

	combined, runErr := cmd.CombinedOutput()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return string(combined), ctxErr
	}
	if runErr != nil {
		return string(combined), fmt.Errorf("build command failed: %w", runErr)
	}
	return string(combined), nil
}

func (b *CommandBuilder) expandCommand(source, output string) ([]string, error) {
	vars := map[string]string{
		"src":       source,
		"out":       output,
		"build_dir": filepath.Dir(output),
	}

	args := make([]string, 0, len(b.Command)+len(b.IncludePaths)+len(b.LibraryPaths)+len(b.Libraries))
	for _, tmpl := range b.Command {
		switch tmpl {
		case "${include_flags}":
			for _, p := range b.IncludePaths {
				args = append(args, b.includeFlag()+p)
			}
		case "${lib_flags}":
			for _, p := range b.LibraryPaths {
				args = append(args, b.libPathFlag()+p)
			}
			for _, l := range b.Libraries {
				args = append(args, b.libFlag()+l)
			}
		default:
			expanded, err := expandVars(tmpl, vars)
			if err != nil {
				return nil, err
			}
			args = append(args, expanded)
		}
	}
	return args, nil
}

func (b *CommandBuilder) includeFlag() string {
	if b.IncludeFlag != "" {
		return b.IncludeFlag
	}
	return "-I"
}

func (b *CommandBuilder) libPathFlag() string {
	if b.LibPathFlag != "" {
		return b.LibPathFlag
	}
	return "-L"
}

func (b *CommandBuilder) libFlag() string {
	if b.LibFlag != "" {
		return b.LibFlag
	}
	return "-l"
}

// varPattern matches ${name} build variables.
var varPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// expandVars substitutes ${name} references in one argv element,
// failing on names the builder doesn't define.
func expandVars(s string, vars map[string]string) (string, error) {
	var missing []string
	out := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("undefined build variable: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

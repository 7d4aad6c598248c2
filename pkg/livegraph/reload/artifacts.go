package reload

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Artifact naming. Each build gets a unique file name so the platform
// loader can never hand back a cached handle for an older build of the
// same chain.
const (
	artifactPrefix = "chain_"
	artifactExt    = ".so"
)

// defaultKeepArtifacts is how many compiled artifacts survive pruning.
const defaultKeepArtifacts = 3

// Workspace manages the build directory: unique artifact paths per
// build number and retention of the most recent few for post-mortems.
type Workspace struct {
	dir  string
	keep int
}

// NewWorkspace creates (if needed) the build directory. keep below 1
// falls back to the default retention.
func NewWorkspace(dir string, keep int) (*Workspace, error) {
	if keep < 1 {
		keep = defaultKeepArtifacts
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating build dir: %w", err)
	}
	return &Workspace{dir: dir, keep: keep}, nil
}

// Dir returns the build directory.
func (w *Workspace) Dir() string { return w.dir }

// ArtifactPath returns the unique output path for a build number.
func (w *Workspace) ArtifactPath(build int) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s%d%s", artifactPrefix, build, artifactExt))
}

// Prune removes all but the newest artifacts, ordered by build number.
// Files in the build directory that don't follow the artifact naming
// are left alone. Removal failures are reported but don't stop the
// sweep.
func (w *Workspace) Prune() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading build dir: %w", err)
	}

	type artifact struct {
		name  string
		build int
	}
	var artifacts []artifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		build, ok := parseArtifactName(e.Name())
		if !ok {
			continue
		}
		artifacts = append(artifacts, artifact{name: e.Name(), build: build})
	}

	if len(artifacts) <= w.keep {
		return nil
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].build > artifacts[j].build
	})

	var firstErr error
	for _, a := range artifacts[w.keep:] {
		if err := os.Remove(filepath.Join(w.dir, a.name)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("pruning %s: %w", a.name, err)
		}
	}
	return firstErr
}

// parseArtifactName extracts the build number from an artifact file
// name, reporting false for anything that isn't one.
func parseArtifactName(name string) (int, bool) {
	if !strings.HasPrefix(name, artifactPrefix) || !strings.HasSuffix(name, artifactExt) {
		return 0, false
	}
	num := strings.TrimSuffix(strings.TrimPrefix(name, artifactPrefix), artifactExt)
	build, err := strconv.Atoi(num)
	if err != nil || build < 0 {
		return 0, false
	}
	return build, true
}

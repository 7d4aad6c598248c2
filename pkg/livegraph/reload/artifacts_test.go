package reload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewWorkspace_CreatesDir verifies the build directory is created on
// demand.
func TestNewWorkspace_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "build", "nested")

	ws, err := NewWorkspace(dir, 3)
	require.NoError(t, err)
	assert.Equal(t, dir, ws.Dir())

	fi, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

// TestWorkspace_ArtifactPath verifies each build number maps to a unique
// artifact name.
func TestWorkspace_ArtifactPath(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), 3)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(ws.Dir(), "chain_1.so"), ws.ArtifactPath(1))
	assert.Equal(t, filepath.Join(ws.Dir(), "chain_42.so"), ws.ArtifactPath(42))
	assert.NotEqual(t, ws.ArtifactPath(1), ws.ArtifactPath(2))
}

// TestWorkspace_Prune verifies only the newest artifacts by build number
// survive.
func TestWorkspace_Prune(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), 2)
	require.NoError(t, err)

	for _, build := range []int{1, 3, 10, 2, 7} {
		require.NoError(t, os.WriteFile(ws.ArtifactPath(build), []byte("x"), 0o644))
	}

	require.NoError(t, ws.Prune())

	entries, err := os.ReadDir(ws.Dir())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"chain_7.so", "chain_10.so"}, names)
}

// TestWorkspace_Prune_UnderLimit verifies nothing is removed while at or
// below the retention count.
func TestWorkspace_Prune_UnderLimit(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), 3)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(ws.ArtifactPath(1), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(ws.ArtifactPath(2), []byte("x"), 0o644))

	require.NoError(t, ws.Prune())

	entries, err := os.ReadDir(ws.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// TestWorkspace_Prune_LeavesForeignFiles verifies files that don't
// follow the artifact naming are never touched.
func TestWorkspace_Prune_LeavesForeignFiles(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), 1)
	require.NoError(t, err)

	foreign := []string{"notes.txt", "chain_x.so", "chain_2.dll", "lib.so"}
	for _, name := range foreign {
		require.NoError(t, os.WriteFile(filepath.Join(ws.Dir(), name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(ws.Dir(), "chain_9.so"), 0o755)) // a dir, not an artifact
	for build := 1; build <= 3; build++ {
		require.NoError(t, os.WriteFile(ws.ArtifactPath(build), []byte("x"), 0o644))
	}

	require.NoError(t, ws.Prune())

	for _, name := range foreign {
		_, err := os.Stat(filepath.Join(ws.Dir(), name))
		assert.NoError(t, err, "foreign file %s should survive", name)
	}
	_, err = os.Stat(ws.ArtifactPath(3))
	assert.NoError(t, err)
	_, err = os.Stat(ws.ArtifactPath(1))
	assert.True(t, os.IsNotExist(err))
}

// TestWorkspace_KeepFallback verifies retention below one falls back to
// the default.
func TestWorkspace_KeepFallback(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), 0)
	require.NoError(t, err)

	for build := 1; build <= 5; build++ {
		require.NoError(t, os.WriteFile(ws.ArtifactPath(build), []byte("x"), 0o644))
	}
	require.NoError(t, ws.Prune())

	entries, err := os.ReadDir(ws.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, defaultKeepArtifacts)
}

// TestParseArtifactName tests recognition of artifact file names.
func TestParseArtifactName(t *testing.T) {
	testCases := []struct {
		name  string
		build int
		ok    bool
	}{
		{"chain_1.so", 1, true},
		{"chain_42.so", 42, true},
		{"chain_007.so", 7, true},
		{"chain_.so", 0, false},
		{"chain_x.so", 0, false},
		{"chain_-3.so", 0, false},
		{"chain_1.dll", 0, false},
		{"other_1.so", 0, false},
		{"chain_1.so.bak", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			build, ok := parseArtifactName(tc.name)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.build, build)
		})
	}
}

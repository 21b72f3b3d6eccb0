package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDiscoverDatabaseInDir_CurrentDirOnly verifies that discovery only checks
// the given directory and does not walk up the tree.
func TestDiscoverDatabaseInDir_CurrentDirOnly(t *testing.T) {
	tmpRoot := t.TempDir()
	parentDir := filepath.Join(tmpRoot, "parent")
	childDir := filepath.Join(parentDir, "child")

	require.NoError(t, os.MkdirAll(filepath.Join(parentDir, ProjectDirName), 0755))
	parentDB := filepath.Join(parentDir, ProjectDirName, "parent.db")
	require.NoError(t, os.WriteFile(parentDB, []byte(""), 0644))
	require.NoError(t, os.MkdirAll(childDir, 0755))

	_, err := discoverDatabaseInDir(childDir)
	assert.Error(t, err, "child dir has no database")

	dbPath, err := discoverDatabaseInDir(parentDir)
	require.NoError(t, err)
	assert.Equal(t, parentDB, dbPath)
}

func TestDiscoverDatabaseInDir_IgnoresNonDBFiles(t *testing.T) {
	tmpDir := t.TempDir()
	talentDir := filepath.Join(tmpDir, ProjectDirName)
	require.NoError(t, os.MkdirAll(talentDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(talentDir, "config.yaml"), []byte("storage: {}\n"), 0644))

	_, err := discoverDatabaseInDir(tmpDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "talent init")

	require.NoError(t, os.WriteFile(filepath.Join(talentDir, "agency.db"), []byte(""), 0644))
	dbPath, err := discoverDatabaseInDir(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "agency.db", filepath.Base(dbPath))
}

func TestDiscoverDatabase_EnvOverride(t *testing.T) {
	t.Setenv("TALENT_DB_PATH", ":memory:")
	path, err := DiscoverDatabase()
	require.NoError(t, err)
	assert.Equal(t, ":memory:", path)

	t.Setenv("TALENT_DB_PATH", "/tmp/candidates.db")
	path, err = DiscoverDatabase()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/candidates.db", path)
}

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot("/home/user/agency/.talent/agency.db")
	require.NoError(t, err)
	assert.Equal(t, "/home/user/agency", root)

	_, err = GetProjectRoot("/home/user/agency/agency.db")
	assert.Error(t, err)
}

func TestInitProject(t *testing.T) {
	tmpDir := t.TempDir()

	dbPath, err := InitProject(tmpDir, "recruiting")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, ProjectDirName, "recruiting.db"), dbPath)

	info, err := os.Stat(filepath.Join(tmpDir, ProjectDirName))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Default name comes from the directory
	dbPath, err = InitProject(tmpDir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(tmpDir)+".db", filepath.Base(dbPath))

	// Existing database is refused
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ProjectDirName, "taken.db"), []byte(""), 0644))
	_, err = InitProject(tmpDir, "taken.db")
	assert.Error(t, err)

	_, err = InitProject(filepath.Join(tmpDir, "missing"), "x")
	assert.Error(t, err)
}

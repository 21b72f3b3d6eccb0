package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProjectDirName is the per-project directory holding the candidate database
// and config file.
const ProjectDirName = ".talent"

// DiscoverDatabase looks for .talent/*.db in the current directory only.
// Returns the absolute path to the database file, or an error if not found.
//
// TALENT_DB_PATH is checked first so tests and scripts can point at a specific
// database (including ":memory:") without discovery.
func DiscoverDatabase() (string, error) {
	if dbPath := os.Getenv("TALENT_DB_PATH"); dbPath != "" {
		return dbPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	return discoverDatabaseInDir(dir)
}

// discoverDatabaseInDir checks for .talent/*.db in the specified directory only.
// It does not walk up the tree, so a nested project never picks up its
// parent's candidate database.
func discoverDatabaseInDir(dir string) (string, error) {
	projectDir := filepath.Join(dir, ProjectDirName)

	if info, err := os.Stat(projectDir); err == nil && info.IsDir() {
		entries, err := os.ReadDir(projectDir)
		if err == nil {
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".db") {
					absPath, err := filepath.Abs(filepath.Join(projectDir, entry.Name()))
					if err != nil {
						return "", fmt.Errorf("failed to get absolute path: %w", err)
					}
					return absPath, nil
				}
			}
		}
	}

	return "", fmt.Errorf(
		"no %s/*.db found in %s\n"+
			"  Run 'talent init' to create a candidate database in this directory\n"+
			"  Or use --db flag to specify database path explicitly",
		ProjectDirName, dir)
}

// GetProjectRoot returns the directory containing the .talent/ directory for
// a database path.
//
// Example:
//
//	dbPath: /home/user/agency/.talent/agency.db
//	returns: /home/user/agency
func GetProjectRoot(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	dbDir := filepath.Dir(absPath)
	if filepath.Base(dbDir) != ProjectDirName {
		return "", fmt.Errorf(
			"database must be in a %s/ directory, got: %s",
			ProjectDirName, dbPath)
	}

	return filepath.Dir(dbDir), nil
}

// InitProject creates a new .talent directory and returns the path the
// database should be opened at. The database file itself is created on first
// connection.
func InitProject(projectDir, projectName string) (string, error) {
	if _, err := os.Stat(projectDir); os.IsNotExist(err) {
		return "", fmt.Errorf("project directory does not exist: %s", projectDir)
	}

	talentDir := filepath.Join(projectDir, ProjectDirName)
	if err := os.MkdirAll(talentDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", ProjectDirName, err)
	}

	dbName := projectName
	if dbName == "" {
		dbName = filepath.Base(projectDir)
	}
	if !strings.HasSuffix(dbName, ".db") {
		dbName += ".db"
	}

	dbPath := filepath.Join(talentDir, dbName)
	if _, err := os.Stat(dbPath); err == nil {
		return "", fmt.Errorf("database already exists: %s", dbPath)
	}

	return dbPath, nil
}

// Package testutil provides shared fixtures for package tests: a temporary
// results directory and an in-process web application with sessions.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	"github.com/khanhnv2901/seca-probe/internal/shared/security"
)

// TestEnv holds a temporary results directory for one test.
type TestEnv struct {
	TmpDir     string
	ResultsDir string
	Operator   string
	t          *testing.T
}

// NewTestEnv creates a test environment under t.TempDir().
// Usage:
//
//	env := testutil.NewTestEnv(t)
//	repo := json.NewScanRunRepository(env.ResultsDir)
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()
	resultsDir := filepath.Join(tmpDir, "results")
	if err := os.MkdirAll(resultsDir, consts.DefaultDirPerm); err != nil {
		t.Fatalf("Failed to create test results directory: %v", err)
	}

	return &TestEnv{
		TmpDir:     tmpDir,
		ResultsDir: resultsDir,
		Operator:   "test-operator",
		t:          t,
	}
}

// RunPath returns <results>/<runID>/<name>.
func (e *TestEnv) RunPath(runID, name string) string {
	e.t.Helper()
	path, err := security.ResolveRunFile(e.ResultsDir, runID, name)
	if err != nil {
		e.t.Fatalf("invalid run path %s/%s: %v", runID, name, err)
	}
	return path
}

// CreateFile creates a file relative to the temporary directory.
func (e *TestEnv) CreateFile(relativePath string, content []byte) string {
	e.t.Helper()

	fullPath := e.resolve(relativePath)
	if err := os.MkdirAll(filepath.Dir(fullPath), consts.DefaultDirPerm); err != nil {
		e.t.Fatalf("Failed to create directory for %s: %v", fullPath, err)
	}
	if err := os.WriteFile(fullPath, content, consts.DefaultFilePerm); err != nil {
		e.t.Fatalf("Failed to create file %s: %v", fullPath, err)
	}
	return fullPath
}

// ReadFile reads a file relative to the temporary directory.
func (e *TestEnv) ReadFile(relativePath string) []byte {
	e.t.Helper()

	content, err := os.ReadFile(e.resolve(relativePath))
	if err != nil {
		e.t.Fatalf("Failed to read file %s: %v", relativePath, err)
	}
	return content
}

// MustExist fails the test if the file does not exist.
func (e *TestEnv) MustExist(path string) {
	e.t.Helper()
	if _, err := os.Stat(path); err != nil {
		e.t.Fatalf("File %s should exist: %v", path, err)
	}
}

func (e *TestEnv) resolve(relativePath string) string {
	e.t.Helper()
	path, err := security.ResolveWithin(e.TmpDir, relativePath)
	if err != nil {
		e.t.Fatalf("invalid test path %s: %v", relativePath, err)
	}
	return path
}

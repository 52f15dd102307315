package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPathEscape indicates the resolved path would escape the trusted root directory.
	ErrPathEscape = errors.New("path escapes base directory")
	// ErrUnsafeName indicates a path component that is not a plain file name.
	ErrUnsafeName = errors.New("unsafe path component")
)

// ResolveWithin joins the provided path elements under the given base directory and ensures
// the resulting path never traverses outside of that base. The returned path is absolute.
func ResolveWithin(base string, elems ...string) (string, error) {
	if base == "" {
		return "", errors.New("base directory is required")
	}

	cleanBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}

	target := filepath.Join(append([]string{cleanBase}, elems...)...)

	rel, err := filepath.Rel(cleanBase, target)
	if err != nil {
		return "", fmt.Errorf("relativize path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, target)
	}

	return target, nil
}

// ResolveRunFile returns <base>/<runID>/<name>. runID and name must be single
// path components; identifiers coming from the command line are never allowed
// to select a directory.
func ResolveRunFile(base, runID, name string) (string, error) {
	for _, component := range []string{runID, name} {
		if !isPlainName(component) {
			return "", fmt.Errorf("%w: %q", ErrUnsafeName, component)
		}
	}
	return ResolveWithin(base, runID, name)
}

func isPlainName(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && filepath.Base(s) == s
}

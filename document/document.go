// Package document grounds a conversation turn in an uploaded file: it loads
// the file's text, splits it into overlapping chunks, and builds a throwaway
// vector index queried once per turn. Nothing here outlives the invocation.
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loader resolves a file identifier to its full text.
type Loader interface {
	Load(ctx context.Context, fileID string) (string, error)
}

// FSLoader loads documents from a directory, treating the file identifier as
// a name inside the root. Identifiers containing path separators or parent
// references are rejected.
type FSLoader struct {
	Root string
}

// NewFSLoader creates a loader rooted at dir.
func NewFSLoader(dir string) *FSLoader {
	return &FSLoader{Root: dir}
}

// Load reads the named file's contents.
func (l *FSLoader) Load(_ context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", fmt.Errorf("document: empty file id")
	}
	if strings.ContainsAny(fileID, `/\`) || strings.Contains(fileID, "..") {
		return "", fmt.Errorf("document: invalid file id %q", fileID)
	}
	data, err := os.ReadFile(filepath.Join(l.Root, fileID))
	if err != nil {
		return "", fmt.Errorf("document: load %q: %w", fileID, err)
	}
	return string(data), nil
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, fileID string) (string, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, fileID string) (string, error) {
	return f(ctx, fileID)
}

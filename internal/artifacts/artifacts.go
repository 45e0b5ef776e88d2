// Package artifacts reads the classifier's model files by logical name.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Logical artifact names.
const (
	Model  = "model"
	Scaler = "scaler"
	Config = "config"
)

// ErrNotFound is returned when an artifact does not exist in the store.
var ErrNotFound = errors.New("artifact not found")

// Store reads artifacts by logical name.
type Store interface {
	Read(name string) ([]byte, error)
}

// DefaultFiles maps logical names to file names inside a model directory.
var DefaultFiles = map[string]string{
	Model:  "model.onnx",
	Scaler: "scaler.json",
	Config: "config.json",
}

// Dir is a Store backed by a directory on disk.
type Dir struct {
	root  string
	files map[string]string
}

// NewDir creates a directory store rooted at root using DefaultFiles.
func NewDir(root string) *Dir {
	return &Dir{root: root, files: DefaultFiles}
}

// Root returns the directory the store reads from.
func (d *Dir) Root() string { return d.root }

// Read returns the contents of the named artifact.
func (d *Dir) Read(name string) ([]byte, error) {
	file, ok := d.files[name]
	if !ok {
		return nil, fmt.Errorf("artifacts: %w: unknown name %q", ErrNotFound, name)
	}
	data, err := os.ReadFile(filepath.Join(d.root, file))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("artifacts: %w: %s", ErrNotFound, file)
	}
	if err != nil {
		return nil, fmt.Errorf("artifacts: read %s: %w", file, err)
	}
	return data, nil
}

// Map is an in-memory Store, mostly useful in tests.
type Map map[string][]byte

// Read returns the named artifact or ErrNotFound.
func (m Map) Read(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("artifacts: %w: %s", ErrNotFound, name)
	}
	return data, nil
}

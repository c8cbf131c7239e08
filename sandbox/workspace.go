package sandbox

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Workspace is the temporary app directory served by the sandbox
type Workspace struct {
	dir  string
	fs   FileSystem
	once sync.Once
	err  error
}

// NewWorkspace creates a fresh, empty workspace directory
func NewWorkspace(fs FileSystem) (*Workspace, error) {
	dir, err := fs.MkdirTemp("", "noimport-app-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{dir: dir, fs: fs}, nil
}

// Dir returns the workspace path
func (w *Workspace) Dir() string {
	return w.dir
}

// Write stores the manifest and probe program
func (w *Workspace) Write(manifest []byte, program string) error {
	if err := w.fs.WriteFile(filepath.Join(w.dir, ManifestFile), manifest, FilePermission); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := w.fs.WriteFile(filepath.Join(w.dir, ProgramFile), []byte(program), FilePermission); err != nil {
		return fmt.Errorf("failed to write probe program: %w", err)
	}
	return nil
}

// Remove deletes the workspace recursively. Safe to call more than once.
func (w *Workspace) Remove() error {
	w.once.Do(func() {
		w.err = w.fs.RemoveAll(w.dir)
	})
	return w.err
}

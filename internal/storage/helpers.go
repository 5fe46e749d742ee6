package storage

import (
	"io"
	"os"
	"path/filepath"
)

// openFile opens a local file for reading, shared by the remote backends'
// PutFile implementations.
func openFile(path string) (*os.File, error) {
	return os.Open(path)
}

// writeFile drains r into a freshly created file at path, creating parent
// directories as needed, shared by the remote backends' GetFile
// implementations.
func writeFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

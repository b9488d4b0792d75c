package store

import (
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// isLocked reports whether err looks like another process holding the file.
func isLocked(err error) bool {
	return stderrors.Is(err, fs.ErrPermission)
}

// copyToTemp copies path into a fresh temporary file and returns its name.
func copyToTemp(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "locked-*-"+filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), dst.Close()
}

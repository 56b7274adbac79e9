package vos

import (
	"errors"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotFound is the error resulting if a path search failed to find an
// executable file.
var ErrNotFound = exec.ErrNotFound

func findExecutable(v VOS, file string) error {
	d, err := v.Stat(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case err != nil:
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories
// named by the PATH environment variable. If file contains a slash, it
// is tried directly and the PATH is not consulted. The result may be an
// absolute path or a path relative to the current directory.
func LookPath(v VOS, file string) (string, error) {
	if strings.Contains(file, "/") {
		if err := findExecutable(v, file); err != nil {
			return "", err
		}
		return file, nil
	}
	for _, dir := range filepath.SplitList(v.Getenv("PATH")) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(v, candidate); err == nil {
			return candidate, nil
		}
	}
	return "", ErrNotFound
}

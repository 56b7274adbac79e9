package vos

import (
	"os"
	"path"
	"time"

	"github.com/spf13/afero"
)

// NewRelativeFs wraps a filesystem so relative paths resolve against
// the owning process's working directory. Each process handle carries
// its own wrapper; the underlying filesystem stays shared.
func NewRelativeFs(base VFS, getwd func() string) VFS {
	return &relativeFs{base: base, getwd: getwd}
}

type relativeFs struct {
	base  VFS
	getwd func() string
}

var _ afero.Fs = (*relativeFs)(nil)

func (r *relativeFs) abs(name string) string {
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Clean(path.Join(r.getwd(), name))
}

func (r *relativeFs) Name() string { return "relativeFs" }

func (r *relativeFs) Create(name string) (afero.File, error) {
	return r.base.Create(r.abs(name))
}

func (r *relativeFs) Mkdir(name string, perm os.FileMode) error {
	return r.base.Mkdir(r.abs(name), perm)
}

func (r *relativeFs) MkdirAll(name string, perm os.FileMode) error {
	return r.base.MkdirAll(r.abs(name), perm)
}

func (r *relativeFs) Open(name string) (afero.File, error) {
	return r.base.Open(r.abs(name))
}

func (r *relativeFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	return r.base.OpenFile(r.abs(name), flag, perm)
}

func (r *relativeFs) Remove(name string) error {
	return r.base.Remove(r.abs(name))
}

func (r *relativeFs) RemoveAll(name string) error {
	return r.base.RemoveAll(r.abs(name))
}

func (r *relativeFs) Rename(oldname, newname string) error {
	return r.base.Rename(r.abs(oldname), r.abs(newname))
}

func (r *relativeFs) Stat(name string) (os.FileInfo, error) {
	return r.base.Stat(r.abs(name))
}

func (r *relativeFs) Chmod(name string, mode os.FileMode) error {
	return r.base.Chmod(r.abs(name), mode)
}

func (r *relativeFs) Chown(name string, uid, gid int) error {
	return r.base.Chown(r.abs(name), uid, gid)
}

func (r *relativeFs) Chtimes(name string, atime, mtime time.Time) error {
	return r.base.Chtimes(r.abs(name), atime, mtime)
}

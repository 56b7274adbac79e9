package interp

import (
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/emanuelstiuj/Mini-Shell/core/vos"
)

// openMode selects how a redirection target is opened.
type openMode int

const (
	modeTruncate openMode = iota
	modeAppend
	modeRead
)

// savedStreams remembers the three standard stream slots so a command's
// redirections never outlive it.
type savedStreams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func saveStreams(v vos.VOS) savedStreams {
	return savedStreams{in: v.Stdin(), out: v.Stdout(), err: v.Stderr()}
}

func (s savedStreams) restore(v vos.VOS) {
	v.SetStdin(s.in)
	v.SetStdout(s.out)
	v.SetStderr(s.err)
}

// redirector opens redirection targets and swaps them into a context's
// stream slots. Every file it opens is closed by closeAll, which the
// executor runs on every exit path.
type redirector struct {
	v      vos.VOS
	fatal  FatalFunc
	opened []afero.File
}

// open opens path for the given mode. If the plain open fails (the
// usual cause is a missing file), it retries with create+truncate and
// permission 0644; failure of the retry is unrecoverable.
func (r *redirector) open(path string, mode openMode) afero.File {
	var (
		fd  afero.File
		err error
	)
	switch mode {
	case modeTruncate:
		fd, err = r.v.OpenFile(path, os.O_TRUNC|os.O_WRONLY, 0)
	case modeAppend:
		fd, err = r.v.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	case modeRead:
		fd, err = r.v.OpenFile(path, os.O_RDONLY, 0)
	}
	if err != nil {
		// File does not exist yet.
		fd, err = r.v.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			r.fatal("open %s: %v", path, err)
			return nil
		}
	}
	r.opened = append(r.opened, fd)
	return fd
}

// redirectOut points stdout at path.
func (r *redirector) redirectOut(path string, mode openMode) {
	r.v.SetStdout(r.open(path, mode))
}

// redirectErr points stderr at path.
func (r *redirector) redirectErr(path string, mode openMode) {
	r.v.SetStderr(r.open(path, mode))
}

// openStdin opens an input redirection target for a child process. The
// file is not tracked: the caller hands ownership to the child, which
// must close it when reaped.
func (r *redirector) openStdin(path string) afero.File {
	var (
		fd  afero.File
		err error
	)
	fd, err = r.v.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		fd, err = r.v.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			r.fatal("open %s: %v", path, err)
			return nil
		}
	}
	return fd
}

// closeAll releases every descriptor the redirector opened. A close
// failure indicates descriptor-table corruption.
func (r *redirector) closeAll() {
	for _, fd := range r.opened {
		if err := fd.Close(); err != nil {
			r.fatal("close %s: %v", fd.Name(), err)
		}
	}
	r.opened = nil
}

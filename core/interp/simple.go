package interp

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/afero"

	"github.com/emanuelstiuj/Mini-Shell/core/tree"
	"github.com/emanuelstiuj/Mini-Shell/core/vos"
)

// runSimple executes one builtin or external program. The three stream
// slots are saved on entry and restored on every exit path, so no
// redirection leaks past the command's lifetime.
//
// When deferWait is set the started external process is returned
// un-reaped together with status 0; the pipe handler waits for it.
func (in *Interp) runSimple(v vos.VOS, s *tree.SimpleCommand, deferWait bool) (int, vos.Process) {
	saved := saveStreams(v)
	r := &redirector{v: v, fatal: in.fatal}
	defer func() {
		r.closeAll()
		saved.restore(v)
	}()

	argv := s.Argv()
	verb := argv[0]

	// Session exit skips redirection and execution entirely.
	if verb == "exit" || verb == "quit" {
		return StatusShellExit, nil
	}

	fileOut := s.Out.String()
	fileErr := s.Err.String()
	hasOut := !s.Out.IsZero()
	hasErr := !s.Err.IsZero()

	switch {
	case hasOut && hasErr && fileOut == fileErr && s.Redir.AppendOut == s.Redir.AppendErr:
		// Both streams share one target: point them at a single
		// descriptor so the writes land one after the other instead of
		// clobbering each other. The target is truncated at most once.
		mode := modeTruncate
		if s.Redir.AppendOut {
			mode = modeAppend
		}
		fd := r.open(fileOut, mode)
		v.SetStdout(fd)
		v.SetStderr(fd)
	case s.Redir.AppendOut && s.Redir.AppendErr:
		r.redirectOut(fileOut, modeAppend)
		r.redirectErr(fileErr, modeAppend)
	case s.Redir.AppendErr:
		if hasOut {
			r.redirectOut(fileOut, modeTruncate)
		}
		r.redirectErr(fileErr, modeAppend)
	case s.Redir.AppendOut:
		if hasErr {
			r.redirectErr(fileErr, modeTruncate)
		}
		r.redirectOut(fileOut, modeAppend)
	default:
		if hasOut {
			r.redirectOut(fileOut, modeTruncate)
		}
		if hasErr {
			r.redirectErr(fileErr, modeTruncate)
		}
	}

	if verb == "cd" {
		return in.builtinCd(v, s), nil
	}

	if verb == "pwd" {
		fmt.Fprintln(v.Stdout(), v.Getwd())
		return 0, nil
	}

	if s.IsAssignment() {
		name, value := s.SplitAssignment()
		if err := v.Setenv(name, value); err != nil {
			fmt.Fprintln(v.Stderr(), err)
			return 1, nil
		}
		return 0, nil
	}

	return in.runExternal(v, r, s, argv, deferWait)
}

// builtinCd changes the working directory. Without an argument it is a
// successful no-op.
func (in *Interp) builtinCd(v vos.VOS, s *tree.SimpleCommand) int {
	if len(s.Args) == 0 {
		return 0
	}
	if err := v.Chdir(s.Args[0].String()); err != nil {
		fmt.Fprintln(v.Stderr(), err)
		return 1
	}
	return 0
}

// runExternal resolves the program on PATH and launches it. Input
// redirection is materialized only in the child's stream set so a pipe
// write-sibling keeps inheriting the pipe instead.
func (in *Interp) runExternal(v vos.VOS, r *redirector, s *tree.SimpleCommand, argv []string, deferWait bool) (int, vos.Process) {
	verb := argv[0]

	execPath, err := vos.LookPath(v, verb)
	if err != nil {
		if errors.Is(err, vos.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(v.Stderr(), "Execution failed for '%s'\n", verb)
		}
		return 1, nil
	}

	var (
		stdin     io.Reader = v.Stdin()
		stdinFile afero.File
	)
	if !s.In.IsZero() {
		stdinFile = r.openStdin(s.In.String())
		stdin = stdinFile
	}

	files := vos.NewStdIO(stdin, v.Stdout(), v.Stderr())
	proc, err := v.StartProcess(execPath, argv, &vos.ProcAttr{Files: files})
	if err != nil {
		if stdinFile != nil {
			stdinFile.Close()
		}
		if errors.Is(err, vos.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(v.Stderr(), "Execution failed for '%s'\n", verb)
		}
		return 1, nil
	}
	if stdinFile != nil {
		proc = &closingProcess{Process: proc, fd: stdinFile}
	}

	if deferWait {
		return 0, proc
	}
	return proc.Wait(), nil
}

// closingProcess closes the child's redirected stdin once it is reaped.
type closingProcess struct {
	vos.Process
	fd afero.File
}

func (p *closingProcess) Wait() int {
	status := p.Process.Wait()
	p.fd.Close()
	return status
}

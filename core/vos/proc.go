package vos

import (
	"io"
	"os/exec"
	"path"
	"sync/atomic"
)

// ProcessFunc is an in-process "program": it runs against the child's
// VOS handle and returns an exit status.
type ProcessFunc func(VOS) int

// ProcessResolver looks up an in-process program by executable path. It
// returns nil if the path has no registered program.
type ProcessResolver func(path string) ProcessFunc

// SystemOS is the state shared by every process handle: the filesystem,
// the PID counter and the program resolver.
//
// A SystemOS with a resolver is fully virtual: unresolved paths fail
// with ErrNotFound and nothing ever touches the host. A SystemOS
// without a resolver launches real programs through os/exec.
type SystemOS struct {
	fs       VFS
	hostname string
	resolver ProcessResolver
	pids     int32
}

// NewSystemOS creates the shared OS state.
func NewSystemOS(fs VFS, hostname string, resolver ProcessResolver) *SystemOS {
	return &SystemOS{fs: fs, hostname: hostname, resolver: resolver}
}

// NextPID returns a monotonically increasing process id.
func (s *SystemOS) NextPID() int {
	return int(atomic.AddInt32(&s.pids, 1))
}

// InitProc creates the first process handle of the system.
func (s *SystemOS) InitProc() *ProcOS {
	p := &ProcOS{
		sys:  s,
		env:  NewMapEnv(),
		io:   NewNullIO(),
		dir:  "/",
		pid:  s.NextPID(),
		args: []string{"init"},
	}
	p.VFS = NewRelativeFs(s.fs, p.Getwd)
	return p
}

// ProcOS is the per-process view of a SystemOS: its environment,
// working directory, streams and identity.
type ProcOS struct {
	VFS

	sys  *SystemOS
	env  *MapEnv
	io   *StdIO
	dir  string
	pid  int
	args []string
}

var _ VOS = (*ProcOS)(nil)

// Env delegation.

func (p *ProcOS) Getenv(key string) string           { return p.env.Getenv(key) }
func (p *ProcOS) LookupEnv(key string) (string, bool) { return p.env.LookupEnv(key) }
func (p *ProcOS) Setenv(key, value string) error      { return p.env.Setenv(key, value) }
func (p *ProcOS) Unsetenv(key string) error           { return p.env.Unsetenv(key) }
func (p *ProcOS) Environ() []string                   { return p.env.Environ() }
func (p *ProcOS) ExpandEnv(s string) string           { return p.env.ExpandEnv(s) }

// Stream delegation.

func (p *ProcOS) Stdin() io.Reader  { return p.io.Stdin() }
func (p *ProcOS) Stdout() io.Writer { return p.io.Stdout() }
func (p *ProcOS) Stderr() io.Writer { return p.io.Stderr() }

func (p *ProcOS) SetStdin(r io.Reader)  { p.io.SetStdin(r) }
func (p *ProcOS) SetStdout(w io.Writer) { p.io.SetStdout(w) }
func (p *ProcOS) SetStderr(w io.Writer) { p.io.SetStderr(w) }

// Getpid implements VProc.Getpid.
func (p *ProcOS) Getpid() int { return p.pid }

// Args implements VProc.Args.
func (p *ProcOS) Args() []string { return p.args }

// Hostname implements VOS.Hostname.
func (p *ProcOS) Hostname() string { return p.sys.hostname }

// Getwd implements VOS.Getwd. The directory is always absolute.
func (p *ProcOS) Getwd() string { return p.dir }

// Chdir implements VOS.Chdir. Relative paths resolve against the
// current directory; the target must exist and be a directory.
func (p *ProcOS) Chdir(dir string) error {
	if !path.IsAbs(dir) {
		dir = path.Clean(path.Join(p.dir, dir))
	}

	stat, err := p.Stat(dir)
	switch {
	case err != nil:
		return err
	case !stat.IsDir():
		return &notDirError{dir}
	default:
		p.dir = dir
		return nil
	}
}

type notDirError struct{ path string }

func (e *notDirError) Error() string { return e.path + ": Not a directory" }

// Fork implements VOS.Fork.
func (p *ProcOS) Fork() VOS {
	child := &ProcOS{
		sys:  p.sys,
		env:  NewMapEnvFrom(p.env),
		io:   p.io.Clone(),
		dir:  p.dir,
		pid:  p.sys.NextPID(),
		args: p.args,
	}
	child.VFS = NewRelativeFs(p.sys.fs, child.Getwd)
	return child
}

// StartProcess implements VProc.StartProcess.
func (p *ProcOS) StartProcess(execPath string, argv []string, attr *ProcAttr) (Process, error) {
	if attr == nil {
		attr = &ProcAttr{}
	}
	if argv == nil {
		argv = []string{execPath}
	}

	child := &ProcOS{
		sys:  p.sys,
		dir:  p.dir,
		pid:  p.sys.NextPID(),
		args: argv,
	}
	child.VFS = NewRelativeFs(p.sys.fs, child.Getwd)
	if attr.Env == nil {
		child.env = NewMapEnvFrom(p.env)
	} else {
		child.env = NewMapEnvFromList(attr.Env)
	}
	if attr.Files == nil {
		child.io = p.io.Clone()
	} else {
		child.io = attr.Files
	}
	if attr.Dir != "" {
		if err := child.Chdir(attr.Dir); err != nil {
			return nil, err
		}
	}

	if p.sys.resolver != nil {
		fn := p.sys.resolver(execPath)
		if fn == nil {
			return nil, ErrNotFound
		}
		return startFunc(child.pid, child, fn), nil
	}

	cmd := &exec.Cmd{
		Path:   execPath,
		Args:   argv,
		Env:    child.Environ(),
		Dir:    child.dir,
		Stdin:  child.Stdin(),
		Stdout: child.Stdout(),
		Stderr: child.Stderr(),
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

var _ VIO = (*ProcOS)(nil)

// funcProcess runs a ProcessFunc on its own goroutine.
type funcProcess struct {
	pid    int
	done   chan struct{}
	status int
}

func startFunc(pid int, child VOS, fn ProcessFunc) *funcProcess {
	p := &funcProcess{pid: pid, done: make(chan struct{})}
	go func() {
		p.status = fn(child)
		close(p.done)
	}()
	return p
}

func (p *funcProcess) PID() int { return p.pid }

func (p *funcProcess) Wait() int {
	<-p.done
	return p.status
}

// execProcess wraps a started exec.Cmd.
type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) PID() int { return p.cmd.Process.Pid }

func (p *execProcess) Wait() int {
	err := p.cmd.Wait()
	switch e := err.(type) {
	case nil:
		return 0
	case *exec.ExitError:
		return e.ExitCode()
	default:
		return 1
	}
}

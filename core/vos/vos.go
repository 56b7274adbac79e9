// Package vos models the mutable process state a shell manipulates —
// environment, working directory, standard streams, filesystem and child
// processes — as an explicit handle instead of ambient process globals.
// The interpreter is written entirely against these interfaces so it can
// run on the real OS or on a deterministic in-memory OS in tests.
package vos

import (
	"io"

	"github.com/spf13/afero"
)

// VFS is the filesystem a process sees. afero.NewOsFs gives the real
// one, afero.NewMemMapFs a hermetic one.
type VFS = afero.Fs

// VEnv is a process environment.
type VEnv interface {
	Getenv(key string) string
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
	Unsetenv(key string) error
	Environ() []string
	ExpandEnv(s string) string
}

// VIO holds a process's three standard streams. The slots are mutable:
// redirection swaps them and restores the saved values afterward.
type VIO interface {
	Stdin() io.Reader
	Stdout() io.Writer
	Stderr() io.Writer

	SetStdin(io.Reader)
	SetStdout(io.Writer)
	SetStderr(io.Writer)
}

// Process is a started child process whose termination can be awaited.
type Process interface {
	// PID returns the process id.
	PID() int
	// Wait blocks until the process terminates and returns its exit
	// status.
	Wait() int
}

// ProcAttr describes how to start a child process.
type ProcAttr struct {
	// Dir is the child's working directory; empty means inherit.
	Dir string
	// Env gives the child's environment; nil means inherit a copy.
	Env []string
	// Files are the child's standard streams; nil means inherit.
	Files *StdIO
}

// VProc creates and identifies processes.
type VProc interface {
	Getpid() int
	// Args holds the argument vector the process was started with,
	// including the program name as Args()[0].
	Args() []string
	// StartProcess launches the program at path with the given argv
	// and attributes. It does not wait.
	StartProcess(path string, argv []string, attr *ProcAttr) (Process, error)
}

// VOS is the full virtual OS handle a process holds.
type VOS interface {
	VEnv
	VIO
	VFS
	VProc

	Getwd() string
	Chdir(dir string) error
	Hostname() string

	// Fork returns an independent copy of the handle for a child
	// evaluation: same system and filesystem, copied environment,
	// working directory and stream slots. Mutations on the child are
	// invisible to the parent.
	Fork() VOS
}

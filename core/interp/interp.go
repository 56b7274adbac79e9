// Package interp evaluates command trees: it maps the shell's control
// operators onto process creation, stream redirection and piping, and
// propagates exit statuses the way a POSIX shell does.
package interp

import (
	"fmt"
	"io"
	"os"

	"github.com/emanuelstiuj/Mini-Shell/core/tree"
	"github.com/emanuelstiuj/Mini-Shell/core/vos"
)

// StatusShellExit is returned when the evaluated command asks the whole
// session to terminate. It lies outside the valid exit-code range and
// must never be handed to the OS as a process exit code.
const StatusShellExit = -1

// Handle is an awaitable spawned evaluation.
type Handle interface {
	// Wait blocks until the evaluation finishes and returns its exit
	// status, clamped to the 0-255 exit-code range.
	Wait() int
}

// Spawner runs a tree evaluation concurrently with the caller, against
// a forked copy of the process context. It is the interpreter's only
// process-creation primitive for composite operators, so tests can
// substitute a deterministic implementation.
type Spawner interface {
	Spawn(v vos.VOS, fn func(vos.VOS) int) Handle
}

// FatalFunc reports an unrecoverable OS-level failure. The default
// writes a diagnostic and exits the process.
type FatalFunc func(format string, args ...interface{})

// Interp evaluates command trees against a vos.VOS handle.
type Interp struct {
	spawn Spawner
	fatal FatalFunc
}

// Option configures an Interp.
type Option func(*Interp)

// WithSpawner replaces the concurrent spawner.
func WithSpawner(s Spawner) Option {
	return func(in *Interp) { in.spawn = s }
}

// WithFatalFunc replaces the unrecoverable-error handler.
func WithFatalFunc(f FatalFunc) Option {
	return func(in *Interp) { in.fatal = f }
}

// New creates an interpreter.
func New(opts ...Option) *Interp {
	in := &Interp{
		spawn: goSpawner{},
		fatal: func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, "mini-shell: "+format+"\n", args...)
			os.Exit(1)
		},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run evaluates the command tree and returns its exit status: a value
// in [0,255] or StatusShellExit.
func (in *Interp) Run(v vos.VOS, c *tree.Command) int {
	status, _ := in.run(v, c, false)
	return status
}

// run dispatches on the operator. deferWait is set only for a leaf that
// is the direct right child of a pipe: its external process is returned
// un-reaped so the pipe handler can wait for it.
func (in *Interp) run(v vos.VOS, c *tree.Command, deferWait bool) (int, vos.Process) {
	if c == nil {
		return 0, nil
	}

	switch c.Op {
	case tree.OpNoOp:
		return 0, nil

	case tree.OpLeaf:
		return in.runSimple(v, c.Simple, deferWait)

	case tree.OpSequence:
		if c.Left != nil {
			if status := in.Run(v, c.Left); status == StatusShellExit {
				return StatusShellExit, nil
			}
		}
		return in.Run(v, c.Right), nil

	case tree.OpBackground:
		first := in.spawn.Spawn(v, func(cv vos.VOS) int {
			return in.Run(cv, c.Left)
		})
		second := in.spawn.Spawn(v, func(cv vos.VOS) int {
			return in.Run(cv, c.Right)
		})
		// Both children finish before the operator returns; their
		// statuses are discarded.
		first.Wait()
		second.Wait()
		return 0, nil

	case tree.OpOr:
		var status int
		if c.Left != nil {
			status = in.Run(v, c.Left)
		}
		if failed(status) {
			return in.Run(v, c.Right), nil
		}
		return 0, nil

	case tree.OpAnd:
		var status int
		if c.Left != nil {
			status = in.Run(v, c.Left)
		}
		if status == 0 {
			return in.Run(v, c.Right), nil
		}
		return 1, nil

	case tree.OpPipe:
		return in.runPipe(v, c), nil

	default:
		return 0, nil
	}
}

// failed reports whether a status means failure for the conditional
// operators. The shell-exit sentinel is neither success nor failure; it
// never triggers the fallback branch.
func failed(status int) bool {
	return status != 0 && status != StatusShellExit
}

// runPipe connects Left's stdout to Right's stdin. The channel is fully
// wired before either side starts; backpressure is the pipe's own.
func (in *Interp) runPipe(v vos.VOS, c *tree.Command) int {
	saved := saveStreams(v)
	defer saved.restore(v)

	pr, pw := io.Pipe()

	// The write side evaluates concurrently with its own context, its
	// stdout pointing at the pipe. Closing the write end is what lets
	// the read side see EOF.
	left := in.spawn.Spawn(v, func(cv vos.VOS) int {
		cv.SetStdout(pw)
		status := in.Run(cv, c.Left)
		pw.Close()
		return status
	})

	// The read side evaluates in place; a chained pipe recurses here.
	v.SetStdin(pr)
	deferWait := c.Right != nil && c.Right.Op == tree.OpLeaf
	status, deferred := in.run(v, c.Right, deferWait)
	if deferred != nil {
		status = deferred.Wait()
	}
	pr.Close()
	left.Wait()

	// A session exit inside a pipe terminates only that segment.
	if status == StatusShellExit {
		status = 0
	}
	return status
}

// goSpawner forks the context and evaluates on a goroutine.
type goSpawner struct{}

func (goSpawner) Spawn(v vos.VOS, fn func(vos.VOS) int) Handle {
	child := v.Fork()
	h := &goHandle{done: make(chan struct{})}
	go func() {
		h.status = exitStatus(fn(child))
		close(h.done)
	}()
	return h
}

type goHandle struct {
	done   chan struct{}
	status int
}

func (h *goHandle) Wait() int {
	<-h.done
	return h.status
}

// exitStatus truncates a status to the exit-code range, the same way a
// process exit would. The sentinel never crosses a spawn boundary.
func exitStatus(status int) int {
	return status & 0xFF
}

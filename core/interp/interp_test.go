package interp

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emanuelstiuj/Mini-Shell/core/tree"
	"github.com/emanuelstiuj/Mini-Shell/core/vos"
	"github.com/emanuelstiuj/Mini-Shell/core/vos/vostest"
)

// syncBuffer is safe for concurrent writers, which Background produces.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestOS(t *testing.T) (vos.VOS, *syncBuffer, *syncBuffer) {
	t.Helper()

	programs := vostest.DefaultPrograms()
	programs["both"] = func(v vos.VOS) int {
		fmt.Fprintln(v.Stdout(), "to stdout")
		fmt.Fprintln(v.Stderr(), "to stderr")
		return 0
	}

	v := vostest.NewDeterministicOS(programs)
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	v.SetStdout(stdout)
	v.SetStderr(stderr)
	return v, stdout, stderr
}

func newTestInterp(t *testing.T) *Interp {
	t.Helper()
	return New(WithFatalFunc(func(format string, args ...interface{}) {
		t.Fatalf("fatal: "+format, args...)
	}))
}

func leaf(verb string, args ...string) *tree.Command {
	s := &tree.SimpleCommand{Verb: tree.Word{verb}}
	for _, a := range args {
		s.Args = append(s.Args, tree.Word{a})
	}
	return tree.Leaf(s)
}

func TestRun_Sequence(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)

	status := in.Run(v, tree.Binary(tree.OpSequence, leaf("echo", "a"), leaf("echo", "b")))

	assert.Equal(t, 0, status)
	assert.Equal(t, "a\nb\n", stdout.String())
}

func TestRun_SequenceNilLeft(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)

	status := in.Run(v, tree.Binary(tree.OpSequence, nil, leaf("echo", "b")))

	assert.Equal(t, 0, status)
	assert.Equal(t, "b\n", stdout.String())
}

func TestRun_SequenceExitShortCircuits(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)

	status := in.Run(v, tree.Binary(tree.OpSequence, leaf("exit"), leaf("echo", "never")))

	assert.Equal(t, StatusShellExit, status)
	assert.Empty(t, stdout.String(), "second command must not run after exit")
}

func TestRun_SequencePropagatesStatus(t *testing.T) {
	v, _, _ := newTestOS(t)
	in := newTestInterp(t)

	status := in.Run(v, tree.Binary(tree.OpSequence, leaf("echo"), leaf("ret", "7")))

	assert.Equal(t, 7, status)
}

func TestRun_BackgroundRunsBothAndSucceeds(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)

	status := in.Run(v, tree.Binary(tree.OpBackground, leaf("echo", "x"), leaf("ret", "9")))

	assert.Equal(t, 0, status, "background always reports success")
	assert.Equal(t, "x\n", stdout.String())
}

func TestRun_BackgroundSideEffectsHappenOnce(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := New(WithSpawner(serialSpawner{}), WithFatalFunc(func(format string, args ...interface{}) {
		t.Fatalf("fatal: "+format, args...)
	}))

	status := in.Run(v, tree.Binary(tree.OpBackground, leaf("echo", "l"), leaf("echo", "r")))

	assert.Equal(t, 0, status)
	assert.Equal(t, "l\nr\n", stdout.String())
}

func TestRun_BackgroundEnvDoesNotLeak(t *testing.T) {
	v, _, _ := newTestOS(t)
	in := newTestInterp(t)

	assign := tree.Leaf(&tree.SimpleCommand{Verb: tree.Word{"LEAK", "=", "yes"}})
	in.Run(v, tree.Binary(tree.OpBackground, assign, leaf("echo")))

	_, ok := v.LookupEnv("LEAK")
	assert.False(t, ok, "background child env must not leak into the caller")
}

func TestRun_OrRunsRightOnlyOnFailure(t *testing.T) {
	cases := []struct {
		name       string
		left       *tree.Command
		wantStatus int
		wantOut    string
	}{
		{"left fails", leaf("false"), 0, "ok\n"},
		{"left succeeds", leaf("true"), 0, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, stdout, _ := newTestOS(t)
			in := newTestInterp(t)

			status := in.Run(v, tree.Binary(tree.OpOr, tc.left, leaf("echo", "ok")))

			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantOut, stdout.String())
		})
	}
}

func TestRun_OrReturnsRightStatus(t *testing.T) {
	v, _, _ := newTestOS(t)
	in := newTestInterp(t)

	status := in.Run(v, tree.Binary(tree.OpOr, leaf("false"), leaf("ret", "5")))

	assert.Equal(t, 5, status)
}

func TestRun_AndRunsRightOnlyOnSuccess(t *testing.T) {
	cases := []struct {
		name       string
		left       *tree.Command
		wantStatus int
		wantOut    string
	}{
		{"left succeeds", leaf("true"), 0, "ok\n"},
		{"left fails", leaf("false"), 1, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, stdout, _ := newTestOS(t)
			in := newTestInterp(t)

			status := in.Run(v, tree.Binary(tree.OpAnd, tc.left, leaf("echo", "ok")))

			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantOut, stdout.String())
		})
	}
}

func TestRun_Pipe(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)

	status := in.Run(v, tree.Binary(tree.OpPipe, leaf("echo", "hello"), leaf("tr-up")))

	assert.Equal(t, 0, status)
	assert.Equal(t, "HELLO\n", stdout.String())
}

func TestRun_PipeReturnsRightStatus(t *testing.T) {
	v, _, _ := newTestOS(t)
	in := newTestInterp(t)

	status := in.Run(v, tree.Binary(tree.OpPipe, leaf("echo", "hi"), leaf("ret", "7")))

	assert.Equal(t, 7, status)
}

func TestRun_PipeChainLeftNested(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)

	chain := tree.Binary(tree.OpPipe,
		tree.Binary(tree.OpPipe, leaf("echo", "abc"), leaf("tr-up")),
		leaf("cat"))
	status := in.Run(v, chain)

	assert.Equal(t, 0, status)
	assert.Equal(t, "ABC\n", stdout.String())
}

func TestRun_PipeChainRightNested(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)

	chain := tree.Binary(tree.OpPipe,
		leaf("echo", "abc"),
		tree.Binary(tree.OpPipe, leaf("tr-up"), leaf("cat")))
	status := in.Run(v, chain)

	assert.Equal(t, 0, status)
	assert.Equal(t, "ABC\n", stdout.String())
}

func TestRun_PipeMasksSessionExit(t *testing.T) {
	v, _, _ := newTestOS(t)
	in := newTestInterp(t)

	status := in.Run(v, tree.Binary(tree.OpPipe, leaf("echo"), leaf("exit")))

	assert.Equal(t, 0, status, "exit inside a pipe must not end the session")
}

func TestRun_PipeRestoresStreams(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)

	stdin := v.Stdin()
	in.Run(v, tree.Binary(tree.OpPipe, leaf("echo", "x"), leaf("cat")))

	assert.Equal(t, stdin, v.Stdin(), "stdin must be restored after the pipe")
	in.Run(v, leaf("echo", "after"))
	assert.Equal(t, "x\nafter\n", stdout.String())
}

func TestRun_NoOp(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)

	assert.Equal(t, 0, in.Run(v, tree.NoOp()))
	assert.Empty(t, stdout.String())
}

func TestRunSimple_RedirectStdout(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)

	cmd := tree.Leaf(&tree.SimpleCommand{
		Verb: tree.Word{"echo"},
		Args: []tree.Word{{"hi"}},
		Out:  tree.Word{"out.txt"},
	})
	status := in.Run(v, cmd)

	assert.Equal(t, 0, status)
	assert.Empty(t, stdout.String(), "caller stdout unaffected")
	content, err := afero.ReadFile(v, "/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(content))
}

func TestRunSimple_RedirectTruncates(t *testing.T) {
	v, _, _ := newTestOS(t)
	in := newTestInterp(t)
	require.NoError(t, afero.WriteFile(v, "/out.txt", []byte("old content\n"), 0644))

	cmd := tree.Leaf(&tree.SimpleCommand{
		Verb: tree.Word{"echo"},
		Args: []tree.Word{{"new"}},
		Out:  tree.Word{"out.txt"},
	})
	in.Run(v, cmd)

	content, err := afero.ReadFile(v, "/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(content))
}

func TestRunSimple_RedirectAppend(t *testing.T) {
	v, _, _ := newTestOS(t)
	in := newTestInterp(t)
	require.NoError(t, afero.WriteFile(v, "/out.txt", []byte("first\n"), 0644))

	cmd := tree.Leaf(&tree.SimpleCommand{
		Verb:  tree.Word{"echo"},
		Args:  []tree.Word{{"second"}},
		Out:   tree.Word{"out.txt"},
		Redir: tree.RedirMode{AppendOut: true},
	})
	in.Run(v, cmd)

	content, err := afero.ReadFile(v, "/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(content))
}

func TestRunSimple_RedirectSameTargetAliasing(t *testing.T) {
	v, _, _ := newTestOS(t)
	in := newTestInterp(t)
	require.NoError(t, afero.WriteFile(v, "/both.txt", []byte("stale\n"), 0644))

	cmd := tree.Leaf(&tree.SimpleCommand{
		Verb: tree.Word{"both"},
		Out:  tree.Word{"both.txt"},
		Err:  tree.Word{"both.txt"},
	})
	status := in.Run(v, cmd)

	assert.Equal(t, 0, status)
	content, err := afero.ReadFile(v, "/both.txt")
	require.NoError(t, err)
	assert.Equal(t, "to stdout\nto stderr\n", string(content))
}

func TestRunSimple_RedirectSameTargetAppend(t *testing.T) {
	v, _, _ := newTestOS(t)
	in := newTestInterp(t)
	require.NoError(t, afero.WriteFile(v, "/both.txt", []byte("first\n"), 0644))

	cmd := tree.Leaf(&tree.SimpleCommand{
		Verb:  tree.Word{"both"},
		Out:   tree.Word{"both.txt"},
		Err:   tree.Word{"both.txt"},
		Redir: tree.RedirMode{AppendOut: true, AppendErr: true},
	})
	status := in.Run(v, cmd)

	assert.Equal(t, 0, status)
	content, err := afero.ReadFile(v, "/both.txt")
	require.NoError(t, err)
	assert.Equal(t, "first\nto stdout\nto stderr\n", string(content))
}

func TestRunSimple_RedirectStdin(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)
	require.NoError(t, afero.WriteFile(v, "/in.txt", []byte("from file\n"), 0644))

	cmd := tree.Leaf(&tree.SimpleCommand{
		Verb: tree.Word{"cat"},
		In:   tree.Word{"in.txt"},
	})
	status := in.Run(v, cmd)

	assert.Equal(t, 0, status)
	assert.Equal(t, "from file\n", stdout.String())
}

func TestRunSimple_StreamsRestoredAfterLeaf(t *testing.T) {
	v, stdout, stderr := newTestOS(t)
	in := newTestInterp(t)

	stdin, out, errw := v.Stdin(), v.Stdout(), v.Stderr()
	in.Run(v, tree.Leaf(&tree.SimpleCommand{
		Verb: tree.Word{"both"},
		Out:  tree.Word{"o.txt"},
		Err:  tree.Word{"e.txt"},
	}))

	assert.Equal(t, stdin, v.Stdin())
	assert.Equal(t, out, v.Stdout())
	assert.Equal(t, errw, v.Stderr())
	assert.Empty(t, stdout.String())
	assert.Empty(t, stderr.String())
}

func TestRunSimple_Cd(t *testing.T) {
	t.Run("changes directory", func(t *testing.T) {
		v, _, _ := newTestOS(t)
		in := newTestInterp(t)

		status := in.Run(v, leaf("cd", "/tmp"))

		assert.Equal(t, 0, status)
		assert.Equal(t, "/tmp", v.Getwd())
	})

	t.Run("no argument is a no-op", func(t *testing.T) {
		v, _, _ := newTestOS(t)
		in := newTestInterp(t)

		status := in.Run(v, leaf("cd"))

		assert.Equal(t, 0, status)
		assert.Equal(t, "/", v.Getwd())
	})

	t.Run("missing directory fails with diagnostic", func(t *testing.T) {
		v, _, stderr := newTestOS(t)
		in := newTestInterp(t)

		status := in.Run(v, leaf("cd", "/nonexistent"))

		assert.Equal(t, 1, status)
		assert.NotEmpty(t, stderr.String())
		assert.Equal(t, "/", v.Getwd(), "working directory unchanged")
	})
}

func TestRunSimple_Pwd(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)

	in.Run(v, leaf("cd", "/tmp"))
	status := in.Run(v, leaf("pwd"))

	assert.Equal(t, 0, status)
	assert.Equal(t, "/tmp\n", stdout.String())
}

func TestRunSimple_PwdRedirected(t *testing.T) {
	v, stdout, _ := newTestOS(t)
	in := newTestInterp(t)

	cmd := tree.Leaf(&tree.SimpleCommand{
		Verb: tree.Word{"pwd"},
		Out:  tree.Word{"wd.txt"},
	})
	in.Run(v, cmd)

	assert.Empty(t, stdout.String())
	content, err := afero.ReadFile(v, "/wd.txt")
	require.NoError(t, err)
	assert.Equal(t, "/\n", string(content))
}

func TestRunSimple_Assignment(t *testing.T) {
	v, _, _ := newTestOS(t)
	in := newTestInterp(t)

	cmd := tree.Leaf(&tree.SimpleCommand{Verb: tree.Word{"GREETING", "=", "hello"}})
	status := in.Run(v, cmd)

	assert.Equal(t, 0, status)
	assert.Equal(t, "hello", v.Getenv("GREETING"))
}

func TestRunSimple_ExitAndQuit(t *testing.T) {
	for _, verb := range []string{"exit", "quit"} {
		t.Run(verb, func(t *testing.T) {
			v, _, _ := newTestOS(t)
			in := newTestInterp(t)

			assert.Equal(t, StatusShellExit, in.Run(v, leaf(verb)))
		})
	}
}

func TestRunSimple_CommandNotFound(t *testing.T) {
	v, _, stderr := newTestOS(t)
	in := newTestInterp(t)

	status := in.Run(v, leaf("no-such-program"))

	assert.Equal(t, 1, status)
	assert.Equal(t, "Execution failed for 'no-such-program'\n", stderr.String())
}

// serialSpawner evaluates inline; handy for deterministic ordering
// assertions on operators that do not need real concurrency.
type serialSpawner struct{}

func (serialSpawner) Spawn(v vos.VOS, fn func(vos.VOS) int) Handle {
	return doneHandle(exitStatus(fn(v.Fork())))
}

type doneHandle int

func (h doneHandle) Wait() int { return int(h) }

package vos

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVirtualProc(t *testing.T, programs map[string]ProcessFunc) *ProcOS {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/bin", 0755))
	require.NoError(t, fs.MkdirAll("/tmp", 0755))
	for name := range programs {
		require.NoError(t, afero.WriteFile(fs, "/bin/"+name, []byte("#!"), 0755))
	}

	resolver := func(path string) ProcessFunc {
		return programs[strings.TrimPrefix(path, "/bin/")]
	}

	proc := NewSystemOS(fs, "host", resolver).InitProc()
	proc.Setenv("PATH", "/bin")
	return proc
}

func TestProcOS_ChdirValidatesTarget(t *testing.T) {
	proc := newVirtualProc(t, nil)

	require.NoError(t, proc.Chdir("/tmp"))
	assert.Equal(t, "/tmp", proc.Getwd())

	assert.Error(t, proc.Chdir("/does/not/exist"))
	assert.Equal(t, "/tmp", proc.Getwd(), "failed chdir leaves the directory alone")
}

func TestProcOS_ChdirRelative(t *testing.T) {
	proc := newVirtualProc(t, nil)
	require.NoError(t, proc.MkdirAll("/tmp/sub", 0755))

	require.NoError(t, proc.Chdir("/tmp"))
	require.NoError(t, proc.Chdir("sub"))
	assert.Equal(t, "/tmp/sub", proc.Getwd())

	require.NoError(t, proc.Chdir(".."))
	assert.Equal(t, "/tmp", proc.Getwd())
}

func TestProcOS_RelativeFsFollowsCwd(t *testing.T) {
	proc := newVirtualProc(t, nil)
	require.NoError(t, proc.Chdir("/tmp"))

	require.NoError(t, afero.WriteFile(proc, "note.txt", []byte("hi"), 0644))

	content, err := afero.ReadFile(proc, "/tmp/note.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(content))
}

func TestProcOS_ForkIsolatesState(t *testing.T) {
	proc := newVirtualProc(t, nil)
	proc.Setenv("SHARED", "before")

	child := proc.Fork()
	child.Setenv("SHARED", "after")
	child.Setenv("CHILD_ONLY", "x")
	require.NoError(t, child.Chdir("/tmp"))
	child.SetStdout(&bytes.Buffer{})

	assert.Equal(t, "before", proc.Getenv("SHARED"))
	_, ok := proc.LookupEnv("CHILD_ONLY")
	assert.False(t, ok)
	assert.Equal(t, "/", proc.Getwd())
	assert.NotEqual(t, proc.Getpid(), child.Getpid())
}

func TestProcOS_StartProcessRunsResolvedProgram(t *testing.T) {
	ran := make(chan []string, 1)
	proc := newVirtualProc(t, map[string]ProcessFunc{
		"probe": func(v VOS) int {
			ran <- v.Args()
			return 42
		},
	})

	p, err := proc.StartProcess("/bin/probe", []string{"probe", "arg"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 42, p.Wait())
	assert.Equal(t, []string{"probe", "arg"}, <-ran)
}

func TestProcOS_StartProcessUnresolvedFails(t *testing.T) {
	proc := newVirtualProc(t, map[string]ProcessFunc{})

	_, err := proc.StartProcess("/bin/ghost", nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcOS_StartProcessChildSeesOwnStreams(t *testing.T) {
	out := &bytes.Buffer{}
	proc := newVirtualProc(t, map[string]ProcessFunc{
		"writer": func(v VOS) int {
			v.Stdout().Write([]byte("from child"))
			return 0
		},
	})

	p, err := proc.StartProcess("/bin/writer", nil, &ProcAttr{
		Files: NewStdIO(nil, out, nil),
	})
	require.NoError(t, err)
	p.Wait()

	assert.Equal(t, "from child", out.String())
}

func TestLookPath(t *testing.T) {
	proc := newVirtualProc(t, map[string]ProcessFunc{
		"tool": func(VOS) int { return 0 },
	})

	t.Run("searches PATH", func(t *testing.T) {
		path, err := LookPath(proc, "tool")
		require.NoError(t, err)
		assert.Equal(t, "/bin/tool", path)
	})

	t.Run("missing command", func(t *testing.T) {
		_, err := LookPath(proc, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("slash bypasses PATH", func(t *testing.T) {
		path, err := LookPath(proc, "/bin/tool")
		require.NoError(t, err)
		assert.Equal(t, "/bin/tool", path)
	})

	t.Run("non-executable is rejected", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(proc, "/bin/data", []byte("x"), 0644))
		_, err := LookPath(proc, "data")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// Package vostest provides a deterministic in-memory OS and a set of
// fake programs so the interpreter can be exercised without creating
// real processes.
package vostest

import (
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/emanuelstiuj/Mini-Shell/core/vos"
)

// DefaultPrograms are the fake executables most tests need.
func DefaultPrograms() map[string]vos.ProcessFunc {
	return map[string]vos.ProcessFunc{
		"echo":  Echo,
		"cat":   Cat,
		"true":  True,
		"false": False,
		"tr-up": Upper,
		"ret":   Ret,
	}
}

// NewDeterministicOS builds a VOS over a MemMapFs with the given
// programs registered under /bin. The handle starts in "/" with
// PATH=/bin and null streams; callers swap in their own buffers.
func NewDeterministicOS(programs map[string]vos.ProcessFunc) vos.VOS {
	fs := afero.NewMemMapFs()
	for _, dir := range []string{"/bin", "/tmp", "/root"} {
		_ = fs.MkdirAll(dir, 0755)
	}
	for name := range programs {
		_ = afero.WriteFile(fs, path.Join("/bin", name), []byte("#!"), 0755)
	}

	resolver := func(execPath string) vos.ProcessFunc {
		return programs[path.Base(execPath)]
	}

	sys := vos.NewSystemOS(fs, "testhost", resolver)
	proc := sys.InitProc()
	proc.Setenv("PATH", "/bin")
	proc.Setenv("HOME", "/root")
	return proc
}

// Echo writes its arguments separated by spaces, then a newline.
func Echo(v vos.VOS) int {
	fmt.Fprintln(v.Stdout(), strings.Join(v.Args()[1:], " "))
	return 0
}

// Cat copies stdin to stdout, or the named files if given.
func Cat(v vos.VOS) int {
	args := v.Args()[1:]
	if len(args) == 0 {
		if _, err := io.Copy(v.Stdout(), v.Stdin()); err != nil {
			fmt.Fprintf(v.Stderr(), "cat: %v\n", err)
			return 1
		}
		return 0
	}
	for _, name := range args {
		fd, err := v.Open(name)
		if err != nil {
			fmt.Fprintf(v.Stderr(), "cat: %s: No such file or directory\n", name)
			return 1
		}
		_, err = io.Copy(v.Stdout(), fd)
		fd.Close()
		if err != nil {
			fmt.Fprintf(v.Stderr(), "cat: %v\n", err)
			return 1
		}
	}
	return 0
}

// True succeeds.
func True(vos.VOS) int { return 0 }

// False fails.
func False(vos.VOS) int { return 1 }

// Upper uppercases stdin onto stdout.
func Upper(v vos.VOS) int {
	data, err := io.ReadAll(v.Stdin())
	if err != nil {
		return 1
	}
	io.WriteString(v.Stdout(), strings.ToUpper(string(data)))
	return 0
}

// Ret exits with the status given as its first argument.
func Ret(v vos.VOS) int {
	args := v.Args()
	if len(args) < 2 {
		return 0
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 255
	}
	return n
}

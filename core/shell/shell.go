// Package shell is the interactive front end: it reads lines, lowers
// them to command trees and hands them to the interpreter.
package shell

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/abiosoft/readline"

	"github.com/emanuelstiuj/Mini-Shell/core/interp"
	"github.com/emanuelstiuj/Mini-Shell/core/logger"
	"github.com/emanuelstiuj/Mini-Shell/core/tree"
	"github.com/emanuelstiuj/Mini-Shell/core/vos"
)

const (
	EnvHome            = "HOME"
	EnvPWD             = "PWD"
	EnvPath            = "PATH"
	EnvPrompt          = "PS1"
	EnvHostname        = "HOSTNAME"
	EnvUser            = "USER"
	DefaultColorPrompt = `\033[01;32m\u@\h\033[00m:\033[01;34m\w\033[00m\$ `
	DefaultPrompt      = `\u@\h:\w\$ `
)

// Options configures a Shell beyond its OS handle.
type Options struct {
	// Interp evaluates the lowered trees. Required.
	Interp *interp.Interp
	// Log receives session audit events. Defaults to a no-op logger.
	Log *logger.Logger
	// User is the login name reflected in the prompt and environment.
	User string
	// IsPTY enables the colored prompt and terminal behavior.
	IsPTY bool
	// HistoryFile persists the readline history when set.
	HistoryFile string
}

// Shell drives one interactive or scripted session.
type Shell struct {
	virtOS   vos.VOS
	interp   *interp.Interp
	log      *logger.Logger
	readline *readline.Instance
	user     string
	isPTY    bool

	lastRet int
	history []string
	quit    bool
}

// NewShell builds a session over the given OS handle and initializes
// its environment the way login would.
func NewShell(virtOS vos.VOS, opts Options) (*Shell, error) {
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}

	cfg := &readline.Config{
		Stdin:       readline.NewCancelableStdin(virtOS.Stdin()),
		Stdout:      virtOS.Stdout(),
		Stderr:      virtOS.Stderr(),
		HistoryFile: opts.HistoryFile,
		FuncIsTerminal: func() bool {
			return opts.IsPTY
		},
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}

	s := &Shell{
		virtOS:   virtOS,
		interp:   opts.Interp,
		log:      opts.Log,
		readline: rl,
		user:     opts.User,
		isPTY:    opts.IsPTY,
	}
	s.init()
	return s, nil
}

// init seeds the login environment: home directory, prompt, identity.
func (s *Shell) init() {
	if s.user == "" {
		s.user = "root"
	}
	homedir, ok := s.virtOS.LookupEnv(EnvHome)
	if !ok || homedir == "" {
		homedir = "/root"
		if s.user != "root" {
			homedir = fmt.Sprintf("/home/%s", s.user)
		}
		s.virtOS.Setenv(EnvHome, homedir)
	}

	// Chdir in case the directory doesn't exist.
	_ = s.virtOS.Chdir(homedir)
	s.virtOS.Setenv(EnvHostname, s.virtOS.Hostname())
	if _, ok := s.virtOS.LookupEnv(EnvPrompt); !ok {
		if s.isPTY {
			s.virtOS.Setenv(EnvPrompt, DefaultColorPrompt)
		} else {
			s.virtOS.Setenv(EnvPrompt, DefaultPrompt)
		}
	}
	s.virtOS.Setenv(EnvPWD, s.virtOS.Getwd())
	s.virtOS.Setenv(EnvUser, s.user)
}

// prompt renders PS1: \u user, \h hostname, \w working directory with
// the home prefix abbreviated, \$ the privilege marker.
func (s *Shell) prompt() string {
	prompt := s.virtOS.Getenv(EnvPrompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	prompt = strings.ReplaceAll(prompt, `\u`, s.virtOS.Getenv(EnvUser))
	prompt = strings.ReplaceAll(prompt, `\h`, s.virtOS.Getenv(EnvHostname))

	pwd := s.virtOS.Getwd()
	home := s.virtOS.Getenv(EnvHome)
	if strings.HasPrefix(pwd, home) {
		pwd = "~" + strings.TrimPrefix(pwd, home)
	}
	prompt = strings.ReplaceAll(prompt, `\w`, pwd)

	if s.user == "root" {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}

	return unescape(prompt)
}

func unescape(s string) string {
	return strings.ReplaceAll(s, `\033`, "\x1b")
}

// RunInteractive reads and evaluates lines until the session ends.
func (s *Shell) RunInteractive() int {
	s.log.SessionStart(s.user, s.virtOS.Hostname())
	defer func() {
		s.log.SessionEnd(exitCode(s.lastRet))
	}()

	for !s.quit {
		s.readline.SetPrompt(s.prompt())
		line, err := s.readline.Readline()

		switch {
		case err == io.EOF:
			return exitCode(s.lastRet)
		case err == readline.ErrInterrupt:
			continue
		case err != nil:
			log.Printf("readline: %v", err)
			continue
		case strings.TrimSpace(line) == "":
			continue
		default:
			s.history = append(s.history, line)
			s.runLine(line)
		}
	}
	return exitCode(s.lastRet)
}

// RunCommand lowers and evaluates one command line, as -c does.
func (s *Shell) RunCommand(line string) int {
	s.runLine(line)
	return exitCode(s.lastRet)
}

// RunScript evaluates a whole script source. A session exit stops the
// script and is reported as success, exactly as it is interactively.
func (s *Shell) RunScript(src string) int {
	status := s.runSource(src)
	if status == interp.StatusShellExit {
		return 0
	}
	return exitCode(status)
}

func (s *Shell) runLine(line string) {
	status := s.runSource(line)
	if status == interp.StatusShellExit {
		s.log.Command(line, 0)
		return
	}
	s.log.Command(line, exitCode(status))
}

// runSource parses src and evaluates its top-level statements one at a
// time, lowering each against the environment as it stands when the
// statement runs. An assignment is therefore visible to the words of
// every statement after it.
func (s *Shell) runSource(src string) int {
	file, err := parse(src)
	if err != nil {
		fmt.Fprintf(s.virtOS.Stderr(), "mini-shell: %v\n", err)
		s.lastRet = 2
		return 2
	}
	if len(file.Stmts) == 0 {
		s.lastRet = 0
		return 0
	}

	status := 0
	for i := 0; i < len(file.Stmts) && !s.quit; i++ {
		group := file.Stmts[i : i+1]
		if file.Stmts[i].Background {
			// & claims everything after it as the parallel branch.
			group = file.Stmts[i:]
			i = len(file.Stmts)
		}
		cmd, err := lowerStmts(s.cmdEnv(), group)
		if err != nil {
			fmt.Fprintf(s.virtOS.Stderr(), "mini-shell: %v\n", err)
			s.lastRet = 2
			return 2
		}

		if builtin := s.lookupBuiltin(cmd); builtin != nil {
			status = builtin.Main(s, cmd.Simple.Argv())
		} else {
			status = s.interp.Run(s.virtOS, cmd)
		}
		if status == interp.StatusShellExit {
			s.quit = true
			return status
		}
		s.lastRet = status
	}
	return status
}

// lookupBuiltin matches a lone simple command against the front-end
// builtin registry. Builtins inside operators run as programs would,
// which for unregistered names means a lookup failure.
func (s *Shell) lookupBuiltin(cmd *tree.Command) *Builtin {
	if cmd == nil || cmd.Op != tree.OpLeaf || cmd.Simple == nil {
		return nil
	}
	return builtins[cmd.Simple.Verb.String()]
}

// cmdEnv snapshots the environment plus the pseudo-variables only word
// resolution sees.
func (s *Shell) cmdEnv() vos.VEnv {
	env := vos.NewMapEnvFromList(s.virtOS.Environ())
	env.Setenv("$", fmt.Sprintf("%d", s.virtOS.Getpid()))
	env.Setenv("?", fmt.Sprintf("%d", exitCode(s.lastRet)))
	return env
}

// exitCode clamps an interpreter status to the OS exit-code range.
func exitCode(status int) int {
	return status & 0xFF
}

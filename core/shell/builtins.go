package shell

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	getopt "github.com/pborman/getopt/v2"
)

// Builtin is a front-end convenience command. It runs inside the shell
// itself, so it can reach session state like the history. Commands the
// evaluator owns (cd, pwd, exit, quit, assignment) are not registered
// here.
type Builtin struct {
	// Use holds a one line usage string.
	Use string
	// Short holds a one line description of the command.
	Short string
	// Main runs the builtin against the session.
	Main func(s *Shell, args []string) int
}

var builtins = make(map[string]*Builtin)

func registerBuiltin(name string, b *Builtin) {
	builtins[name] = b
}

// parseFlags applies getopt to a builtin's argument vector. On bad
// flags or -h it prints usage and reports that the builtin is done.
func parseFlags(s *Shell, b *Builtin, flags *getopt.Set, args []string) (done bool, status int) {
	showHelp := flags.BoolLong("help", 'h', "show this help and exit")

	if err := flags.Getopt(args, nil); err != nil {
		fmt.Fprintf(s.virtOS.Stderr(), "%s: %s\n", args[0], err)
		printBuiltinHelp(s.virtOS.Stderr(), b, flags)
		return true, 1
	}
	if *showHelp {
		printBuiltinHelp(s.virtOS.Stdout(), b, flags)
		return true, 0
	}
	return false, 0
}

func printBuiltinHelp(w io.Writer, b *Builtin, flags *getopt.Set) {
	fmt.Fprintln(w, "usage:", b.Use)
	fmt.Fprintln(w, b.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	flags.PrintOptions(w)
}

func helpMain(s *Shell, args []string) int {
	b := builtins["help"]
	flags := getopt.New()
	if done, status := parseFlags(s, b, flags, args); done {
		return status
	}

	heading := color.New(color.FgGreen, color.Bold)
	if s.isPTY {
		heading.EnableColor()
	} else {
		heading.DisableColor()
	}

	w := s.virtOS.Stdout()
	fmt.Fprintln(w, heading.Sprint("Shell builtins:"))
	for _, line := range []string{
		"  cd [dir]       change the working directory",
		"  pwd            print the working directory",
		"  NAME=value     set an environment variable",
		"  exit, quit     end the session",
	} {
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, heading.Sprint("Session commands:"))
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, builtins[name].Short)
	}
	return 0
}

func historyMain(s *Shell, args []string) int {
	b := builtins["history"]
	flags := getopt.New()
	clear := flags.BoolLong("clear", 'c', "clear the history list")
	if done, status := parseFlags(s, b, flags, args); done {
		return status
	}

	if *clear {
		s.history = nil
		return 0
	}
	for i, line := range s.history {
		fmt.Fprintf(s.virtOS.Stdout(), "%5d  %s\n", i+1, line)
	}
	return 0
}

func init() {
	registerBuiltin("help", &Builtin{
		Use:   "help",
		Short: "List the shell's builtins and session commands.",
		Main:  helpMain,
	})
	registerBuiltin("history", &Builtin{
		Use:   "history [-c]",
		Short: "Show or clear the command history.",
		Main:  historyMain,
	})
}

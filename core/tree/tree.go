// Package tree defines the command tree a shell line is lowered into:
// binary operator nodes over simple commands with their words and
// redirection targets already resolved.
package tree

import "strings"

// Op identifies a node's operator.
type Op int

const (
	// OpLeaf is a simple command.
	OpLeaf Op = iota
	// OpSequence runs Left then Right unconditionally.
	OpSequence
	// OpBackground runs Left and Right in parallel.
	OpBackground
	// OpOr runs Right only if Left failed.
	OpOr
	// OpAnd runs Right only if Left succeeded.
	OpAnd
	// OpPipe connects Left's stdout to Right's stdin.
	OpPipe
	// OpNoOp evaluates to success without running anything.
	OpNoOp
)

func (op Op) String() string {
	switch op {
	case OpLeaf:
		return "leaf"
	case OpSequence:
		return ";"
	case OpBackground:
		return "&"
	case OpOr:
		return "||"
	case OpAnd:
		return "&&"
	case OpPipe:
		return "|"
	case OpNoOp:
		return "noop"
	default:
		return "unknown"
	}
}

// Word is a resolved command word: the concatenation of its parts.
// Assignment verbs are encoded as the three parts {name, "=", value}.
type Word []string

func (w Word) String() string { return strings.Join(w, "") }

// IsZero reports whether the word is absent.
func (w Word) IsZero() bool { return len(w) == 0 }

// RedirMode selects append mode per output stream. The zero value means
// both streams truncate.
type RedirMode struct {
	AppendOut bool
	AppendErr bool
}

// SimpleCommand is a leaf: one verb with arguments and redirection
// targets. An empty In/Out/Err word means the stream is not redirected.
type SimpleCommand struct {
	Verb Word
	Args []Word

	In  Word
	Out Word
	Err Word

	Redir RedirMode
}

// IsAssignment reports whether the verb encodes a name=value assignment.
func (s *SimpleCommand) IsAssignment() bool {
	return len(s.Verb) >= 2 && s.Verb[1] == "="
}

// SplitAssignment returns the assignment's name and value. Only valid
// when IsAssignment is true.
func (s *SimpleCommand) SplitAssignment() (name, value string) {
	return s.Verb[0], strings.Join(s.Verb[2:], "")
}

// Argv renders the command as an argument vector, verb first.
func (s *SimpleCommand) Argv() []string {
	argv := make([]string, 0, len(s.Args)+1)
	argv = append(argv, s.Verb.String())
	for _, a := range s.Args {
		argv = append(argv, a.String())
	}
	return argv
}

// Command is a node of the tree. Operator nodes own both children;
// Left may be nil under OpSequence. Simple is set only on OpLeaf.
type Command struct {
	Op Op

	Left  *Command
	Right *Command

	Simple *SimpleCommand
}

// Leaf wraps a simple command.
func Leaf(s *SimpleCommand) *Command {
	return &Command{Op: OpLeaf, Simple: s}
}

// NoOp returns a node that evaluates to success.
func NoOp() *Command {
	return &Command{Op: OpNoOp}
}

// Binary builds an operator node.
func Binary(op Op, left, right *Command) *Command {
	return &Command{Op: op, Left: left, Right: right}
}

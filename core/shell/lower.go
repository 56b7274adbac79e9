package shell

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/emanuelstiuj/Mini-Shell/core/tree"
	"github.com/emanuelstiuj/Mini-Shell/core/vos"
)

// Lower parses a shell source fragment and lowers it to a command tree.
// Words are resolved against env at lowering time, so the evaluator
// only ever sees literal strings. Syntax the evaluator has no operator
// for is rejected here.
func Lower(env vos.VEnv, src string) (*tree.Command, error) {
	file, err := parse(src)
	if err != nil {
		return nil, err
	}
	return lowerStmts(env, file.Stmts)
}

func parse(src string) (*syntax.File, error) {
	return syntax.NewParser().Parse(strings.NewReader(src), "")
}

// lowerStmts lowers a slice of already-parsed top-level statements. The
// shell loop uses it to lower one statement at a time, so each sees the
// environment left behind by the previous one.
func lowerStmts(env vos.VEnv, list []*syntax.Stmt) (*tree.Command, error) {
	l := &lowerer{env: env}
	return l.stmts(list)
}

type lowerer struct {
	env vos.VEnv
}

func syntaxError(node syntax.Node) error {
	return fmt.Errorf("syntax error near column %d", node.Pos().Col())
}

// stmts folds a statement list right to left. A trailing & pairs the
// flagged statement with everything after it; with nothing after it,
// the second branch is a no-op.
func (l *lowerer) stmts(list []*syntax.Stmt) (*tree.Command, error) {
	if len(list) == 0 {
		return tree.NoOp(), nil
	}

	first, err := l.stmt(list[0])
	if err != nil {
		return nil, err
	}

	if list[0].Background {
		rest, err := l.stmts(list[1:])
		if err != nil {
			return nil, err
		}
		return tree.Binary(tree.OpBackground, first, rest), nil
	}

	if len(list) == 1 {
		return first, nil
	}
	rest, err := l.stmts(list[1:])
	if err != nil {
		return nil, err
	}
	return tree.Binary(tree.OpSequence, first, rest), nil
}

func (l *lowerer) stmt(stmt *syntax.Stmt) (*tree.Command, error) {
	node, err := l.command(stmt.Cmd)
	if err != nil {
		return nil, err
	}

	if len(stmt.Redirs) == 0 {
		return node, nil
	}
	// Redirection only attaches to a simple command.
	if node.Op != tree.OpLeaf {
		return nil, syntaxError(stmt)
	}
	for _, redir := range stmt.Redirs {
		if err := l.applyRedir(node.Simple, redir); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (l *lowerer) command(cmd syntax.Command) (*tree.Command, error) {
	switch cmd := cmd.(type) {
	case *syntax.CallExpr:
		return l.call(cmd)

	case *syntax.BinaryCmd:
		left, err := l.stmt(cmd.X)
		if err != nil {
			return nil, err
		}
		right, err := l.stmt(cmd.Y)
		if err != nil {
			return nil, err
		}
		switch cmd.Op {
		case syntax.AndStmt:
			return tree.Binary(tree.OpAnd, left, right), nil
		case syntax.OrStmt:
			return tree.Binary(tree.OpOr, left, right), nil
		case syntax.Pipe:
			return tree.Binary(tree.OpPipe, left, right), nil
		default:
			return nil, syntaxError(cmd)
		}

	default:
		return nil, syntaxError(cmd)
	}
}

// call lowers a call expression. A bare assignment becomes the verb
// encoding {name, "=", value}; assignments prefixing a command are not
// supported.
func (l *lowerer) call(cmd *syntax.CallExpr) (*tree.Command, error) {
	if len(cmd.Args) == 0 {
		if len(cmd.Assigns) != 1 {
			if len(cmd.Assigns) == 0 {
				return tree.NoOp(), nil
			}
			return nil, syntaxError(cmd)
		}
		assign := cmd.Assigns[0]
		if assign.Name == nil {
			return nil, syntaxError(cmd)
		}
		value, err := l.word(assign.Value)
		if err != nil {
			return nil, err
		}
		return tree.Leaf(&tree.SimpleCommand{
			Verb: tree.Word{assign.Name.Value, "=", value},
		}), nil
	}
	if len(cmd.Assigns) != 0 {
		return nil, syntaxError(cmd)
	}

	verb, err := l.word(cmd.Args[0])
	if err != nil {
		return nil, err
	}
	s := &tree.SimpleCommand{Verb: tree.Word{verb}}
	for _, arg := range cmd.Args[1:] {
		resolved, err := l.word(arg)
		if err != nil {
			return nil, err
		}
		s.Args = append(s.Args, tree.Word{resolved})
	}
	return tree.Leaf(s), nil
}

func (l *lowerer) applyRedir(s *tree.SimpleCommand, redir *syntax.Redirect) error {
	target, err := l.word(redir.Word)
	if err != nil {
		return err
	}
	if target == "" {
		return syntaxError(redir)
	}

	fd := ""
	if redir.N != nil {
		fd = redir.N.Value
	}

	switch redir.Op {
	case syntax.RdrIn:
		if fd != "" && fd != "0" {
			return syntaxError(redir)
		}
		s.In = tree.Word{target}
	case syntax.RdrOut, syntax.AppOut:
		appendMode := redir.Op == syntax.AppOut
		switch fd {
		case "", "1":
			s.Out = tree.Word{target}
			s.Redir.AppendOut = appendMode
		case "2":
			s.Err = tree.Word{target}
			s.Redir.AppendErr = appendMode
		default:
			return syntaxError(redir)
		}
	default:
		return syntaxError(redir)
	}
	return nil
}

func (l *lowerer) word(word *syntax.Word) (string, error) {
	if word == nil {
		return "", nil
	}
	var out strings.Builder
	for _, part := range word.Parts {
		resolved, err := l.wordPart(part)
		if err != nil {
			return "", err
		}
		out.WriteString(resolved)
	}
	return out.String(), nil
}

func (l *lowerer) wordPart(part syntax.WordPart) (string, error) {
	switch part := part.(type) {
	case *syntax.Lit:
		return part.Value, nil

	case *syntax.SglQuoted:
		return part.Value, nil

	case *syntax.DblQuoted:
		var out strings.Builder
		for _, sub := range part.Parts {
			resolved, err := l.wordPart(sub)
			if err != nil {
				return "", err
			}
			out.WriteString(resolved)
		}
		return out.String(), nil

	case *syntax.ParamExp:
		if part.Param == nil {
			return "", syntaxError(part)
		}
		return l.env.Getenv(part.Param.Value), nil

	default:
		return "", syntaxError(part)
	}
}

package permission

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// BashCommand is one parsed command invocation within a shell command
// string; a single "a && b | c" line yields several of these.
type BashCommand struct {
	Name       string
	Args       []string
	Subcommand string
}

// ParseBashCommand splits a shell command string into its constituent
// simple commands. Used only by the "remember" flow, to turn a one-off
// approved command into a sane AllowPrefix rule rather than remembering
// the literal full command line.
func ParseBashCommand(command string) ([]BashCommand, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, err
	}

	var commands []BashCommand
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok {
			if cmd := extractCommand(call); cmd != nil {
				commands = append(commands, *cmd)
			}
		}
		return true
	})
	return commands, nil
}

func extractCommand(call *syntax.CallExpr) *BashCommand {
	if len(call.Args) == 0 {
		return nil
	}
	cmd := &BashCommand{Name: wordToString(call.Args[0])}
	if cmd.Name == "" {
		return nil
	}
	for _, arg := range call.Args[1:] {
		argStr := wordToString(arg)
		cmd.Args = append(cmd.Args, argStr)
		if cmd.Subcommand == "" && !strings.HasPrefix(argStr, "-") {
			cmd.Subcommand = argStr
		}
	}
	return cmd
}

func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

// DerivePrefix parses a full bash command line and returns the sane
// AllowPrefix prefix to remember for it: the command name, plus its
// subcommand when one is present ("git commit -m x" -> "git commit").
// If the line fails to parse (or is empty), it falls back to the literal
// command string so the remember flow never silently no-ops.
func DerivePrefix(command string) string {
	commands, err := ParseBashCommand(command)
	if err != nil || len(commands) == 0 {
		return strings.TrimSpace(command)
	}
	first := commands[0]
	if first.Subcommand != "" {
		return first.Name + " " + first.Subcommand
	}
	return first.Name
}

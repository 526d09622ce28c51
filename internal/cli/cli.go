// Package cli implements the terminal client: argument parsing, the
// interactive grading workflow, and the status and health commands.
package cli

import (
	"flag"
	"fmt"
	"io"
)

// Command selects one of the top-level modes.
type Command string

const (
	// CommandRun walks the grading workflow interactively.
	CommandRun Command = "run"
	// CommandStatus prints backend resource counts.
	CommandStatus Command = "status"
	// CommandHealth pings the backend health endpoint.
	CommandHealth Command = "health"
)

// ExitError carries the process exit code chosen by the parser.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments and returns the selected command.
// The boolean is true when the program should exit cleanly, as after -h.
func Parse(args []string, output io.Writer) (Command, bool, error) {
	flagSet := flag.NewFlagSet("evalmate", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `EvalMate - AI-assisted assignment grading, from the terminal.

Usage:
  evalmate [command]

Commands:
  run      Walk the grading workflow: pick or upload a rubric, question, and
           submission, evaluate, discuss the result, export. (default)
  status   Show how many rubrics, questions, and submissions the backend holds.
  health   Ping the backend.

Configuration comes from EVALMATE_* environment variables or a .env file.
`)
	}

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return "", true, nil
		}
		return "", false, &ExitError{Code: 2, Message: err.Error()}
	}

	switch flagSet.Arg(0) {
	case "", string(CommandRun):
		return CommandRun, false, nil
	case string(CommandStatus):
		return CommandStatus, false, nil
	case string(CommandHealth):
		return CommandHealth, false, nil
	default:
		flagSet.Usage()
		return "", false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", flagSet.Arg(0))}
	}
}

// Package cli implements the lox command: file execution and the REPL.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/lox/internal/config"
	"github.com/funvibe/lox/internal/vm"
)

// Exit codes, following the sysexits convention.
const (
	ExitOK          = 0
	ExitUsage       = 64
	ExitCompileErr  = 65
	ExitRuntimeErr  = 70
	ExitFileReadErr = 74
)

// Entry runs the interpreter with the given arguments and streams and
// returns the process exit code. Zero arguments starts the REPL; one
// argument runs that file.
func Entry(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Load(config.ConfigFileName)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitUsage
	}

	machine := vm.New()
	machine.SetOutput(stdout)
	machine.SetErrorOutput(stderr)
	machine.SetOptions(vm.Options{
		PrintCode:      cfg.PrintCode,
		TraceExecution: cfg.TraceExecution,
	})
	machine.RegisterBuiltins()
	defer machine.Free()

	switch len(args) {
	case 0:
		return repl(machine, cfg, stdin, stdout)
	case 1:
		return runFile(machine, args[0], stderr)
	default:
		fmt.Fprintln(stderr, "Usage: lox [path]")
		return ExitUsage
	}
}

// repl interprets one line at a time. Errors are reported and the session
// continues; end of input, or a line longer than config.MaxReplLine, ends it.
func repl(machine *vm.VM, cfg config.Config, stdin io.Reader, stdout io.Writer) int {
	interactive := isTerminal(stdout)

	scanner := bufio.NewScanner(stdin)
	// One extra byte so a line of MaxReplLine bytes fits with its newline.
	scanner.Buffer(make([]byte, config.MaxReplLine+1), config.MaxReplLine+1)

	for {
		if interactive {
			fmt.Fprint(stdout, cfg.Prompt)
		}
		if !scanner.Scan() {
			if interactive {
				fmt.Fprintln(stdout)
			}
			return ExitOK
		}

		// Compile and runtime errors have already been reported; the next
		// line starts fresh.
		_ = machine.Interpret(scanner.Text())
	}
}

func runFile(machine *vm.VM, path string, stderr io.Writer) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open file \"%s\".\n", path)
		return ExitFileReadErr
	}

	switch err := machine.Interpret(string(source)); {
	case err == nil:
		return ExitOK
	case errors.Is(err, vm.ErrCompile):
		return ExitCompileErr
	default:
		return ExitRuntimeErr
	}
}

// isTerminal reports whether w is an interactive terminal, so the REPL only
// prompts humans.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

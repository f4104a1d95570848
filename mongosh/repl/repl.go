// Package repl reads shell input line by line and hands it to the keyword
// dispatcher or the script runtime.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dop251/goja"
	"github.com/mattn/go-isatty"

	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh/history"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh/jsrt"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh/rewrite"
)

const (
	prompt      = "> "
	exitCommand = "exit"
)

//nolint:govet // fieldalignment: readability preferred
type Config struct {
	In      io.Reader
	Out     io.Writer
	Shell   *mongosh.Shell
	Runtime *jsrt.Runtime
	History history.Store
	// Interactive shows a prompt. Otherwise every line is echoed after
	// the prompt so transcripts read like a session.
	Interactive bool
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Run executes lines until EOF, "exit" or cancellation of ctx. Failures of
// single lines are printed and do not end the session.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	ctx = cfg.Shell.Context(ctx)
	scanner := bufio.NewScanner(cfg.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if cfg.Interactive {
			fmt.Fprint(cfg.Out, prompt)
		}
		if !scanner.Scan() {
			if cfg.Interactive {
				fmt.Fprintln(cfg.Out)
			}
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !cfg.Interactive {
			fmt.Fprintln(cfg.Out, prompt+line)
		}
		if line == exitCommand {
			return nil
		}

		if cfg.History != nil {
			if _, err := cfg.History.AddCmd(line); err != nil {
				slog.WarnContext(ctx, "failed to record command", slog.Any("error", err))
			}
		}
		if msg, ok := FormatError(Execute(ctx, cfg.Shell, cfg.Runtime, line)); ok {
			cfg.Shell.Print(msg)
		}
	}
}

// Execute handles one line of input: a keyword command, or script.
func Execute(ctx context.Context, sh *mongosh.Shell, rt *jsrt.Runtime, line string) error {
	if mongosh.HandleKeywords(ctx, sh, line) {
		return sh.Loop.Drain(ctx)
	}
	return rt.Eval(ctx, line)
}

// FormatError renders err the way the shell prints it. It returns false
// for errors that need no output, such as gateway failures that were
// already printed.
func FormatError(err error) (string, bool) {
	if err == nil || mongosh.IsReported(err) {
		return "", false
	}

	var shellErr *mongosh.ShellError
	if errors.As(err, &shellErr) {
		return "ERROR: " + shellErr.Message, true
	}
	var parseErr *rewrite.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Error(), true
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) || errors.Is(err, context.Canceled) {
		return "ERROR: interrupted", true
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if v := ex.Value(); v != nil {
			return v.String(), true
		}
	}
	return "ERROR: " + err.Error(), true
}

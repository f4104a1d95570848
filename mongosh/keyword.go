package mongosh

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
)

type keywordHandler func(ctx context.Context, sh *Shell, args []string)

var keywordHandlers = map[string]keywordHandler{
	"help":  help,
	"it":    it,
	"show":  show,
	"use":   use,
	"reset": reset,
}

var resetCommandRe = regexp.MustCompile(`^reset\b`)

// IsKeyword reports whether name is a shell command rather than script.
func IsKeyword(name string) bool {
	_, ok := keywordHandlers[name]
	return ok
}

// HandleKeywords runs input as a shell command when its first word is one.
// It returns false when input should be evaluated as script instead.
// Failures are printed, never returned.
func HandleKeywords(ctx context.Context, sh *Shell, input string) bool {
	tokens := strings.Fields(input)
	if len(tokens) == 0 {
		return false
	}
	return RunKeyword(ctx, sh, tokens[0], tokens[1:])
}

// RunKeyword invokes the handler of the named command.
func RunKeyword(ctx context.Context, sh *Shell, name string, args []string) bool {
	handler, ok := keywordHandlers[name]
	if !ok {
		return false
	}
	slog.DebugContext(ctx, "keyword", slog.String("keyword", name), slog.Any("args", args))
	handler(ctx, sh, args)
	return true
}

func it(ctx context.Context, sh *Shell, _ []string) {
	if cur := sh.lastUsedCursor; cur != nil {
		has, err := cur.HasNext(ctx)
		if err != nil {
			sh.PrintError(err)
			return
		}
		if has {
			sh.PrintError(cur.PrintBatch(ctx))
			return
		}
	}
	sh.Print("no cursor")
	slog.WarnContext(ctx, "no cursor")
}

func show(ctx context.Context, sh *Shell, args []string) {
	if len(args) == 0 {
		sh.Print("ERROR: show requires at least one argument")
		return
	}
	switch args[0] {
	case "tables", "collections":
		err := sh.DB.GetCollectionNames(ctx, func(names []string) error {
			sh.Print(names...)
			return nil
		}, true)
		sh.PrintError(err)
	default:
		sh.Print("ERROR: Not yet implemented")
	}
}

func use(ctx context.Context, sh *Shell, _ []string) {
	slog.DebugContext(ctx, "cannot change db: functionality disabled.")
	sh.Print("Cannot change db: functionality disabled.")
}

func help(_ context.Context, sh *Shell, _ []string) {
	sh.Print(helpLines...)
}

// reset drops every collection of the resource and reruns the
// initialization scripts. It only acts when the previous command was also
// reset; otherwise it asks for confirmation.
func reset(ctx context.Context, sh *Shell, _ []string) {
	last := ""
	if sh.History != nil {
		last = sh.History.LastCommand()
	}
	if !sh.resetArmed || !resetCommandRe.MatchString(last) {
		sh.Print(
			"You will lose all of your current data.",
			`Please enter "reset" again to reset the shell.`,
		)
		sh.resetArmed = true
		return
	}
	sh.resetArmed = false

	req := Request{
		URL:    strings.TrimSuffix(sh.DBURL(), "/"),
		Method: http.MethodDelete,
		Name:   "reset",
	}
	err := sh.Gateway.MakeRequest(ctx, sh, req, func(Response) error {
		if err := sh.RunInitScripts(ctx); err != nil {
			sh.PrintError(err)
			return nil
		}
		sh.Print("Database reset successfully")
		return nil
	}, true)
	sh.PrintError(err)
}

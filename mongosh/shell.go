// Package mongosh implements the shell engine: the session state, the
// keyword commands, and the database, collection and cursor objects that
// evaluated scripts operate on through the request gateway.
package mongosh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mongodb-labs/mongo-web-shell-sub000/shared"
)

// CommandHistory is the part of the input history the reset confirmation
// depends on.
type CommandHistory interface {
	// LastCommand returns the command submitted before the current one.
	LastCommand() string
}

// InitScript seeds a resource with data. Scripts run when a resource is
// created and again after a reset.
type InitScript func(ctx context.Context, resID string) error

//nolint:govet // fieldalignment: readability preferred
type Config struct {
	ID          string
	BaseURL     string
	ResID       string
	DBName      string
	BatchSize   int
	Gateway     Gateway
	Out         io.Writer
	History     CommandHistory
	InitScripts []InitScript
}

// Shell is the state of one interactive session. It is not safe for
// concurrent use; asynchronous completions reach it through Loop.
//
//nolint:govet // fieldalignment: readability preferred
type Shell struct {
	ID      string
	BaseURL string
	ResID   string
	Gateway Gateway
	Loop    *EventLoop
	DB      *DB
	History CommandHistory

	// DefaultBatchSize is the configured batch size scripts start with.
	DefaultBatchSize int

	out            io.Writer
	initScripts    []InitScript
	batchSize      func() any
	lastUsedCursor *Cursor
	resetArmed     bool
}

func NewShell(cfg Config) *Shell {
	if cfg.DBName == "" {
		cfg.DBName = "test"
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = shared.DefaultShellBatchSize
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	sh := &Shell{
		ID:          cfg.ID,
		BaseURL:     cfg.BaseURL,
		ResID:       cfg.ResID,
		Gateway:     cfg.Gateway,
		Loop:        NewEventLoop(),
		History:     cfg.History,
		out:         cfg.Out,
		initScripts: cfg.InitScripts,

		DefaultBatchSize: cfg.BatchSize,
	}
	if sh.out == nil {
		sh.out = io.Discard
	}
	batchSize := cfg.BatchSize
	sh.batchSize = func() any { return batchSize }
	sh.DB = newDB(sh, cfg.DBName)
	return sh
}

// Context returns ctx decorated with the shell's identifiers for logging.
func (s *Shell) Context(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, shared.ShellIDKey, s.ID)
	if s.ResID != "" {
		ctx = context.WithValue(ctx, shared.ResIDKey, s.ResID)
	}
	return ctx
}

// Print writes each line to the shell output.
func (s *Shell) Print(lines ...string) {
	for _, line := range lines {
		fmt.Fprintln(s.out, line)
	}
}

// PrintValue prints strings verbatim and everything else in tojson form.
func (s *Shell) PrintValue(v any) {
	if str, ok := v.(string); ok {
		s.Print(str)
		return
	}
	s.Print(TojsonLine(v))
}

// PrintError prints err the way the shell reports failures: nothing for
// failures the gateway already printed, "ERROR: <message>" otherwise.
func (s *Shell) PrintError(err error) {
	if err == nil || IsReported(err) {
		return
	}
	s.Print("ERROR: " + err.Error())
}

// DBURL is the resource's database endpoint, ending in a slash.
func (s *Shell) DBURL() string {
	return s.BaseURL + s.ResID + "/db/"
}

// SetBatchSizeSource makes BatchSize read from src on every call, so that
// scripts can change the batch size between batches.
func (s *Shell) SetBatchSizeSource(src func() any) {
	s.batchSize = src
}

// BatchSize returns the number of results printed per batch. A value that
// is not a non-negative number is reported to the user and rejected.
func (s *Shell) BatchSize() (int, error) {
	if n, ok := batchSizeValue(s.batchSize()); ok {
		return n, nil
	}
	const msg = "Please set DBQuery.shellBatchSize to a valid numerical value."
	s.Print("ERROR: " + msg)
	return 0, NewShellError(ErrValidation, "Bad shell batch size.")
}

func batchSizeValue(v any) (int, bool) {
	var f float64
	switch v := v.(type) {
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || f < 0 {
		return 0, false
	}
	if math.IsInf(f, 1) || f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	return int(math.Ceil(f)), true
}

// LastUsedCursor is the cursor "it" continues, or nil.
func (s *Shell) LastUsedCursor() *Cursor {
	return s.lastUsedCursor
}

// RunInitScripts runs every initialization script concurrently and waits
// for all of them.
func (s *Shell) RunInitScripts(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, script := range s.initScripts {
		g.Go(func() error {
			return script(gctx, s.ResID)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("initialization script failed: %w", err)
	}
	slog.DebugContext(ctx, "initialization scripts done", slog.Int("scripts", len(s.initScripts)))
	return nil
}

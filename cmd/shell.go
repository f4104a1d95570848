package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh/history"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh/jsrt"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh/repl"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh/request"
)

//nolint:govet // fieldalignment: readability preferred
type ShellParams struct {
	BaseURL           string
	HistoryDir        string
	HistorySize       int
	BatchSize         int
	KeepAliveInterval time.Duration
	RequestTimeout    time.Duration
	InitURLs          []string
	InitJSONFiles     []string
}

// ShellMain creates or resumes a resource on the server at BaseURL and runs
// the console on stdin and stdout until exit, EOF or ctx cancellation.
func ShellMain(ctx context.Context, params *ShellParams) error {
	client, err := request.NewClient(params.BaseURL, params.RequestTimeout)
	if err != nil {
		return fmt.Errorf("unable to create request client: %w", err)
	}

	scripts := make([]mongosh.InitScript, 0, len(params.InitURLs)+len(params.InitJSONFiles))
	for _, target := range params.InitURLs {
		scripts = append(scripts, client.InitURL(target))
	}
	for _, path := range params.InitJSONFiles {
		collections, err := readCollections(path)
		if err != nil {
			return err
		}
		script, err := client.InitJSON(collections)
		if err != nil {
			return err
		}
		scripts = append(scripts, script)
	}

	store, err := openHistory(params)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close history", slog.Any("error", err))
		}
	}()

	res, err := client.CreateResource(ctx)
	if err != nil {
		return fmt.Errorf("unable to create resource: %w", err)
	}

	sh := mongosh.NewShell(mongosh.Config{
		ID:          uuid.NewString(),
		BaseURL:     client.BaseURL(),
		ResID:       res.ResID,
		BatchSize:   params.BatchSize,
		Gateway:     client,
		Out:         os.Stdout,
		History:     store,
		InitScripts: scripts,
	})
	ctx = sh.Context(ctx)
	slog.InfoContext(ctx, "shell session started", slog.Bool("new_resource", res.IsNew))

	if res.IsNew {
		if err := sh.RunInitScripts(ctx); err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
	}

	keepAliveCtx, stopKeepAlive := context.WithCancel(ctx)
	defer stopKeepAlive()
	go client.KeepAlive(keepAliveCtx, res.ResID, params.KeepAliveInterval)

	rt, err := jsrt.New(sh)
	if err != nil {
		return fmt.Errorf("unable to set up runtime: %w", err)
	}

	err = repl.Run(ctx, repl.Config{
		In:          os.Stdin,
		Out:         os.Stdout,
		Shell:       sh,
		Runtime:     rt,
		History:     store,
		Interactive: repl.IsTerminal(os.Stdin),
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openHistory(params *ShellParams) (history.Store, error) {
	if params.HistoryDir == "" {
		return history.NewMemStore(params.HistorySize), nil
	}
	store, err := history.Open(params.HistoryDir, params.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("unable to open history in %s: %w", params.HistoryDir, err)
	}
	return store, nil
}

// readCollections reads an Extended JSON document mapping collection names
// to arrays of documents.
func readCollections(path string) (bson.D, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	var collections bson.D
	if err := bson.UnmarshalExtJSON(data, false, &collections); err != nil {
		return nil, fmt.Errorf("invalid collections in %s: %w", path, err)
	}
	return collections, nil
}

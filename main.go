package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	_ "go.uber.org/automaxprocs"

	"github.com/mongodb-labs/mongo-web-shell-sub000/cmd"
	"github.com/mongodb-labs/mongo-web-shell-sub000/internal"
	"github.com/mongodb-labs/mongo-web-shell-sub000/logger"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mws"
)

const defaultRequestTimeout = 30 * time.Second

func setLogger(w *os.File) {
	slog.SetDefault(slog.New(logger.NewHandler(slog.NewJSONHandler(w, logger.NewHandlerOptions()))))
}

func main() {
	appCtx, appClose := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer appClose()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("unable to load .env: %v", err)
	}
	serverDefaults := mws.ConfigFromEnv()

	app := &cli.Command{
		Name:    "mws",
		Usage:   "Web shell for MongoDB and the resource server behind it",
		Version: internal.MWSVersionShaShort(),
		Commands: []*cli.Command{
			{
				Name:  "shell",
				Usage: "Run the shell console against a resource server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "base-url",
						Value:   internal.MWSBaseURL(),
						Usage:   "Resource server prefix every request is built on",
						Sources: cli.EnvVars("MWS_BASE_URL"),
					},
					&cli.StringFlag{
						Name:    "history-dir",
						Value:   internal.MWSHistoryDir(),
						Usage:   "Directory for persistent command history, empty keeps it in memory",
						Sources: cli.EnvVars("MWS_HISTORY_DIR"),
					},
					&cli.IntFlag{
						Name:  "history-size",
						Value: internal.MWSHistorySize(),
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Value: internal.MWSShellBatchSize(),
						Usage: "Documents printed per cursor batch",
					},
					&cli.DurationFlag{
						Name:  "keep-alive-interval",
						Value: internal.MWSKeepAliveInterval(),
					},
					&cli.DurationFlag{
						Name:  "request-timeout",
						Value: defaultRequestTimeout,
					},
					&cli.StringSliceFlag{
						Name:  "init-url",
						Usage: "URL posted the resource id when the resource is new",
					},
					&cli.StringSliceFlag{
						Name:  "init-json",
						Usage: "Extended JSON file of collections loaded when the resource is new",
					},
				},
				Action: func(ctx context.Context, clicmd *cli.Command) error {
					// stdout is the console
					setLogger(os.Stderr)
					return cmd.ShellMain(ctx, &cmd.ShellParams{
						BaseURL:           clicmd.String("base-url"),
						HistoryDir:        clicmd.String("history-dir"),
						HistorySize:       clicmd.Int("history-size"),
						BatchSize:         clicmd.Int("batch-size"),
						KeepAliveInterval: clicmd.Duration("keep-alive-interval"),
						RequestTimeout:    clicmd.Duration("request-timeout"),
						InitURLs:          clicmd.StringSlice("init-url"),
						InitJSONFiles:     clicmd.StringSlice("init-json"),
					})
				},
			},
			{
				Name:  "server",
				Usage: "Run the resource server",
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   uint(serverDefaults.Port),
					},
					&cli.StringFlag{
						Name:    "mongo-url",
						Value:   serverDefaults.MongoURL,
						Sources: cli.EnvVars("MWS_MONGO_URL"),
					},
					&cli.StringFlag{
						Name:    "mongo-db",
						Value:   serverDefaults.MongoDB,
						Sources: cli.EnvVars("MWS_MONGO_DB"),
					},
					&cli.IntFlag{
						Name:  "rate-limit-quota",
						Value: serverDefaults.RateLimitQuota,
						Usage: "Requests allowed per session within the rate limit window",
					},
					&cli.DurationFlag{
						Name:  "rate-limit-expiry",
						Value: serverDefaults.RateLimitExpiry,
					},
					&cli.Int64Flag{
						Name:  "quota-collection-size",
						Value: serverDefaults.QuotaCollectionSize,
						Usage: "Maximum collection size in bytes",
					},
					&cli.DurationFlag{
						Name:  "session-expiry",
						Value: serverDefaults.SessionExpiry,
					},
					&cli.DurationFlag{
						Name:  "session-expiry-interval",
						Value: serverDefaults.SessionExpiryInterval,
					},
					&cli.BoolFlag{
						Name:  "debug",
						Value: serverDefaults.Debug,
						Usage: "Include internal error messages in error responses",
					},
					&cli.BoolFlag{
						Name:    "enable-otel-metrics",
						Value:   serverDefaults.EnableOtelMetrics,
						Sources: cli.EnvVars("MWS_ENABLE_OTEL_METRICS"),
					},
				},
				Action: func(ctx context.Context, clicmd *cli.Command) error {
					setLogger(os.Stdout)
					return cmd.ServerMain(ctx, &cmd.ServerParams{
						Port:                  uint16(clicmd.Uint("port")),
						MongoURL:              clicmd.String("mongo-url"),
						MongoDB:               clicmd.String("mongo-db"),
						RateLimitQuota:        clicmd.Int("rate-limit-quota"),
						RateLimitExpiry:       clicmd.Duration("rate-limit-expiry"),
						QuotaCollectionSize:   clicmd.Int64("quota-collection-size"),
						SessionExpiry:         clicmd.Duration("session-expiry"),
						SessionExpiryInterval: clicmd.Duration("session-expiry-interval"),
						Debug:                 clicmd.Bool("debug"),
						EnableOtelMetrics:     clicmd.Bool("enable-otel-metrics"),
					})
				},
			},
		},
	}

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			log.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n", buf[:stacklen])
		}
	}()

	if err := app.Run(appCtx, os.Args); err != nil {
		log.Printf("error running app: %+v", err)
		appClose()
		os.Exit(1)
	}
}

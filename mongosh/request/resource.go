package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodb-labs/mongo-web-shell-sub000/internal"
	"github.com/mongodb-labs/mongo-web-shell-sub000/logger"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh"
)

// Resource identifies the server-side namespace a shell works in.
type Resource struct {
	ResID string `json:"res_id"`
	IsNew bool   `json:"is_new"`
}

// CreateResource asks the server for the session's resource, retrying
// while the server is unreachable or failing.
func (c *Client) CreateResource(ctx context.Context, opts ...internal.BackoffOption) (Resource, error) {
	opts = append([]internal.BackoffOption{
		internal.WithBackoffMaxAttempts(5),
		internal.WithBackoffMaxDelay(10 * time.Second),
		internal.WithBackoffRetryable(isRetryable),
		internal.WithBackoffOnRetry(func(attempt int, err error, delay time.Duration) {
			slog.WarnContext(ctx, "resource creation failed, retrying",
				slog.Int("attempt", attempt), slog.Any("error", err), slog.Duration("delay", delay))
		}),
	}, opts...)
	return internal.ExponentialBackoff(ctx, func() (Resource, error) {
		return c.createResource(ctx)
	}, opts...)
}

func (c *Client) createResource(ctx context.Context) (Resource, error) {
	req := mongosh.Request{URL: c.baseURL, Method: http.MethodPost, Name: "createMWSResource"}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return Resource{}, err
	}
	raw, err := bson.MarshalExtJSON(resp, false, false)
	if err != nil {
		return Resource{}, err
	}
	var res Resource
	if err := jsoniter.Unmarshal(raw, &res); err != nil {
		return Resource{}, fmt.Errorf("failed to decode resource: %w", err)
	}
	if res.ResID == "" {
		return Resource{}, errors.New("server returned no res_id")
	}
	logger.LoggerFromCtx(ctx).InfoContext(ctx, "resource ready",
		slog.String("res_id", res.ResID), slog.Bool("is_new", res.IsNew))
	return res, nil
}

// isRetryable retries transport failures and server side errors. Client
// errors such as a rejected session will not improve by waiting.
func isRetryable(err error) bool {
	var netErr *mongosh.NetworkError
	if errors.As(err, &netErr) {
		return netErr.Status >= http.StatusInternalServerError
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// KeepAlive refreshes the resource every interval until ctx is done. It
// only logs; a dead server shows up in the next shell request anyway.
func (c *Client) KeepAlive(ctx context.Context, resID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	req := mongosh.Request{URL: c.baseURL + resID + "/keep-alive", Method: http.MethodPost, Name: "keepAlive"}
	log := logger.LoggerFromCtx(ctx)
	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := c.roundTrip(ctx, req)
			switch {
			case err != nil && ctx.Err() != nil:
				return
			case err != nil:
				log.WarnContext(ctx, "keep-alive failed", slog.Any("error", err))
				failing = true
			case failing:
				log.InfoContext(ctx, "keep-alive recovered")
				failing = false
			}
		}
	}
}

// InitURL returns an initialization script that posts the resource id to
// target, which seeds the resource server side.
func (c *Client) InitURL(target string) mongosh.InitScript {
	return func(ctx context.Context, resID string) error {
		req := mongosh.Request{
			URL:    target,
			Params: bson.D{{Key: "res_id", Value: resID}},
			Method: http.MethodPost,
			Name:   "initURL",
		}
		if _, err := c.roundTrip(ctx, req); err != nil {
			return fmt.Errorf("init %s: %w", target, err)
		}
		return nil
	}
}

// InitJSON returns an initialization script that loads collections, a
// document mapping collection names to document arrays, into the resource.
func (c *Client) InitJSON(collections bson.D) (mongosh.InitScript, error) {
	target, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	target.Path = "/init/load_json"
	target.RawQuery = ""
	loadURL := target.String()

	return func(ctx context.Context, resID string) error {
		req := mongosh.Request{
			URL: loadURL,
			Params: bson.D{
				{Key: "res_id", Value: resID},
				{Key: "collections", Value: collections},
			},
			Method: http.MethodPost,
			Name:   "initJSON",
		}
		if _, err := c.roundTrip(ctx, req); err != nil {
			return fmt.Errorf("load_json: %w", err)
		}
		return nil
	}, nil
}

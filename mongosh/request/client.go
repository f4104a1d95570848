// Package request is the HTTP implementation of the shell's request gateway.
package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodb-labs/mongo-web-shell-sub000/logger"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh"
	"github.com/mongodb-labs/mongo-web-shell-sub000/shared"
)

// Client talks to the resource server. The session cookie handed out when
// a resource is created is kept in the client's jar and sent with every
// later request.
type Client struct {
	http    *http.Client
	baseURL string
}

var _ mongosh.Gateway = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		http:    &http.Client{Jar: jar, Timeout: timeout},
		baseURL: baseURL,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// MakeRequest performs req for sh. Failures are printed to the shell and
// returned as *mongosh.NetworkError. In async mode the round trip runs on
// its own goroutine and the continuation is posted to the shell's loop.
func (c *Client) MakeRequest(
	ctx context.Context,
	sh *mongosh.Shell,
	req mongosh.Request,
	onSuccess func(mongosh.Response) error,
	async bool,
) error {
	logger.LoggerFromCtx(ctx).DebugContext(ctx, req.Name+" request",
		slog.String("method", req.Method), slog.String("url", req.URL))
	if !async {
		resp, err := c.roundTrip(ctx, req)
		return finish(ctx, sh, req, resp, err, onSuccess)
	}
	sh.Loop.Go(func() func() error {
		resp, err := c.roundTrip(ctx, req)
		return func() error {
			return finish(ctx, sh, req, resp, err, onSuccess)
		}
	})
	return nil
}

func finish(
	ctx context.Context,
	sh *mongosh.Shell,
	req mongosh.Request,
	resp mongosh.Response,
	err error,
	onSuccess func(mongosh.Response) error,
) error {
	log := logger.LoggerFromCtx(ctx)
	if err != nil {
		netErr := asNetworkError(req.Name, err)
		log.WarnContext(ctx, req.Name+" fail",
			slog.Int("status", netErr.Status), slog.String("reason", netErr.Reason))
		lines := []string{"ERROR: " + netErr.Reason}
		if netErr.Detail != "" {
			lines = append(lines, netErr.Detail)
		}
		sh.Print(lines...)
		return netErr
	}
	log.DebugContext(ctx, req.Name+" success")
	if onSuccess == nil {
		return nil
	}
	return onSuccess(resp)
}

func asNetworkError(name string, err error) *mongosh.NetworkError {
	var netErr *mongosh.NetworkError
	if errors.As(err, &netErr) {
		return netErr
	}
	return &mongosh.NetworkError{Name: name, Reason: err.Error(), Err: err}
}

// roundTrip sends req and decodes the reply. It never touches shell state,
// so it is safe to call off the evaluating goroutine.
func (c *Client) roundTrip(ctx context.Context, req mongosh.Request) (mongosh.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var payload []byte
	if req.Params != nil {
		var err error
		payload, err = bson.MarshalExtJSON(req.Params, false, false)
		if err != nil {
			return nil, &mongosh.NetworkError{Name: req.Name, Reason: "Could not encode request: " + err.Error(), Err: err}
		}
	}

	target := req.URL
	var body io.Reader
	if method == http.MethodGet {
		if payload != nil {
			target += "?" + url.QueryEscape(string(payload))
		}
	} else if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, decodeFailure(req.Name, httpResp.StatusCode, data)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return mongosh.Response{}, nil
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, &mongosh.NetworkError{
			Name:   req.Name,
			Status: httpResp.StatusCode,
			Reason: "Malformed response from server",
			Err:    err,
		}
	}
	return doc, nil
}

func decodeFailure(name string, status int, data []byte) *mongosh.NetworkError {
	netErr := &mongosh.NetworkError{Name: name, Status: status}
	body, err := shared.UnmarshalErrorBody(data)
	if err != nil || body.Reason == "" {
		netErr.Reason = http.StatusText(status)
		netErr.Detail = strings.TrimSpace(string(data))
		return netErr
	}
	netErr.Reason = body.Reason
	netErr.Detail = body.Detail
	return netErr
}

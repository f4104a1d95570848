package mongosh

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Response is a decoded success body. It is empty for 204 replies.
type Response = bson.D

// Request describes one call to the resource server. Params holds only the
// keys that are set; nil means no parameters at all.
//
//nolint:govet // fieldalignment: readability preferred
type Request struct {
	URL    string
	Params bson.D
	Method string
	Name   string
}

// Gateway performs requests against the resource server on behalf of a
// shell. On failure it prints "ERROR: <reason>" (and the detail on its own
// line) to the shell and returns a *NetworkError. In async mode the round
// trip happens in the background and the continuation, onSuccess or the
// failure report, is posted to the shell's event loop; MakeRequest then
// returns nil.
type Gateway interface {
	MakeRequest(ctx context.Context, sh *Shell, req Request, onSuccess func(Response) error, async bool) error
}

// lookup returns the value stored under key in doc, or nil.
func lookup(doc bson.D, key string) any {
	for _, e := range doc {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

// resultArray extracts the "result" array of a find style response.
func resultArray(resp Response) []any {
	switch v := lookup(resp, "result").(type) {
	case bson.A:
		return []any(v)
	case []any:
		return v
	}
	return nil
}

func getRequest(url, name string, params bson.D) Request {
	return Request{URL: url, Params: params, Method: http.MethodGet, Name: name}
}

package mws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// initScript seeds a resource. params is the full request body, res_id
// included.
type initScript func(ctx context.Context, s *Server, resID string, params bson.D) error

var initScripts = map[string]initScript{
	"load_json": loadJSON,
}

// runInitializer runs a named initialization script for the resource in
// the body. The caller must own the resource.
func (s *Server) runInitializer(w http.ResponseWriter, r *http.Request) error {
	name := pathVar(r, "script")
	script, ok := initScripts[name]
	if !ok {
		return NewError(http.StatusNotFound, "Unknown initialization script "+name)
	}
	params, err := readParams(r)
	if err != nil {
		return err
	}
	resID, ok := lookup(params, "res_id").(string)
	if !ok || resID == "" {
		return NewError(http.StatusBadRequest, "'res_id' argument not found in the initialization request.")
	}

	sessionID := sessionFromRequest(r)
	if sessionID == "" {
		return NewError(http.StatusUnauthorized, "There is no session_id cookie")
	}
	access, err := s.store.HasAccess(r.Context(), resID, sessionID)
	if err != nil {
		return err
	}
	if !access {
		return NewError(http.StatusForbidden, "Session error. User does not have access to res_id")
	}

	slog.InfoContext(r.Context(), "running initialization script",
		slog.String("script", name), slog.String("res_id", resID))
	if err := script(r.Context(), s, resID, params); err != nil {
		return err
	}
	return emptySuccess(w)
}

// loadJSON inserts the documents of every collection in the body's
// collections document.
func loadJSON(ctx context.Context, s *Server, resID string, params bson.D) error {
	collections, ok := lookup(params, "collections").(bson.D)
	if !ok {
		return NewError(http.StatusBadRequest, "load_json requires a collections document")
	}
	for _, e := range collections {
		docs, ok := e.Value.(bson.A)
		if !ok {
			return NewError(http.StatusBadRequest, fmt.Sprintf("collection %s must map to an array of documents", e.Key))
		}
		if err := s.store.Insert(ctx, internalCollName(resID, e.Key), docs); err != nil {
			return err
		}
		if err := s.store.AddCollection(ctx, resID, e.Key); err != nil {
			return err
		}
	}
	return nil
}

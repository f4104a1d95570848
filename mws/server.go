// Package mws is the resource server shells talk to. Every shell session
// owns one resource, a set of collections in the backing MongoDB database
// whose names carry the resource id as prefix.
package mws

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodb-labs/mongo-web-shell-sub000/otel_metrics"
	"github.com/mongodb-labs/mongo-web-shell-sub000/shared"
)

const maxBodySize = 16 << 20

//nolint:govet // fieldalignment: readability preferred
type Server struct {
	cfg     Config
	store   Store
	limiter *rateLimiter
	metrics otel_metrics.Metrics
	now     func() time.Time
	handler http.Handler
}

func NewServer(cfg Config, store Store, om *otel_metrics.OtelManager) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		limiter: newRateLimiter(cfg.RateLimitQuota, cfg.RateLimitExpiry),
		metrics: om.Metrics,
		now:     time.Now,
	}

	session := s.checkSession
	limited := []middleware{s.checkSession, s.rateLimit}
	coll := "/mws/{res_id}/db/{coll}/"

	router := mux.NewRouter()
	router.Handle("/mws/", s.route("createMWSResource", s.createResource)).Methods(http.MethodPost)
	router.Handle("/mws/{res_id}/keep-alive", s.route("keepAlive", s.keepAlive, session)).Methods(http.MethodPost)
	router.Handle(coll+"find", s.route("dbCollectionFind", s.find, limited...)).Methods(http.MethodGet)
	router.Handle(coll+"insert", s.route("dbCollectionInsert", s.insert, limited...)).Methods(http.MethodPost)
	router.Handle(coll+"save", s.route("dbCollectionSave", s.save, limited...)).Methods(http.MethodPost)
	router.Handle(coll+"remove", s.route("dbCollectionRemove", s.remove, limited...)).Methods(http.MethodDelete)
	router.Handle(coll+"update", s.route("dbCollectionUpdate", s.update, limited...)).Methods(http.MethodPut)
	router.Handle(coll+"aggregate", s.route("dbCollectionAggregate", s.aggregate, session)).Methods(http.MethodGet)
	router.Handle(coll+"drop", s.route("dbCollectionDrop", s.drop, limited...)).Methods(http.MethodDelete)
	router.Handle(coll+"count", s.route("dbCollectionCount", s.count, limited...)).Methods(http.MethodGet)
	router.Handle("/mws/{res_id}/db/getCollectionNames", s.route("dbGetCollectionNames", s.collectionNames, session)).
		Methods(http.MethodGet)
	router.Handle("/mws/{res_id}/db", s.route("dbDrop", s.dropDatabase, session)).Methods(http.MethodDelete)
	router.Handle("/init/{script}", s.route("init", s.runInitializer)).Methods(http.MethodPost)
	router.NotFoundHandler = s.route("notFound", func(http.ResponseWriter, *http.Request) error {
		return NewError(http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowedHandler = s.route("methodNotAllowed", func(http.ResponseWriter, *http.Request) error {
		return NewError(http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Preflight requests match no route, so these wrap the router instead of
	// being registered with Use.
	s.handler = requestID(cors(router))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) createResource(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sessionID := sessionFromRequest(r)
	if sessionID == "" {
		sessionID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     shared.SessionCookieName,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	client, err := s.store.FindClient(ctx, sessionID)
	if err != nil {
		return err
	}
	isNew := client == nil
	if isNew {
		client = &Client{
			Version:     1,
			ResID:       uuid.NewString(),
			SessionID:   sessionID,
			Collections: []string{},
			Timestamp:   s.now(),
		}
		if err := s.store.CreateClient(ctx, *client); err != nil {
			return err
		}
		s.metrics.ResourcesCreatedCounter.Add(ctx, 1)
	}
	return writeJSON(w, bson.D{
		{Key: "res_id", Value: client.ResID},
		{Key: "is_new", Value: isNew},
	})
}

func (s *Server) keepAlive(w http.ResponseWriter, r *http.Request) error {
	if err := s.store.Touch(r.Context(), pathVar(r, "res_id"), sessionFromRequest(r), s.now()); err != nil {
		return err
	}
	return emptySuccess(w)
}

func (s *Server) find(w http.ResponseWriter, r *http.Request) error {
	params, err := readParams(r)
	if err != nil {
		return err
	}
	opts := FindOptions{Projection: lookup(params, "projection")}
	if opts.Skip, err = intParam(params, "skip"); err != nil {
		return err
	}
	if opts.Limit, err = intParam(params, "limit"); err != nil {
		return err
	}
	docs, err := s.store.Find(r.Context(), collName(r), lookup(params, "query"), opts)
	if err != nil {
		return err
	}
	return writeJSON(w, bson.D{{Key: "result", Value: docs}})
}

func (s *Server) insert(w http.ResponseWriter, r *http.Request) error {
	params, err := readParams(r)
	if err != nil {
		return err
	}
	document, ok := lookupOK(params, "document")
	if !ok {
		return NewError(http.StatusBadRequest, "'document' argument not found in the insert request.")
	}
	var docs []any
	if arr, ok := document.(bson.A); ok {
		docs = arr
	} else {
		docs = []any{document}
	}

	var reqSize int64
	for _, d := range docs {
		n, err := documentSize(d)
		if err != nil {
			return err
		}
		reqSize += n
	}
	if err := s.checkQuota(r, reqSize); err != nil {
		return err
	}
	if err := s.store.Insert(r.Context(), collName(r), docs); err != nil {
		return err
	}
	if err := s.store.AddCollection(r.Context(), pathVar(r, "res_id"), pathVar(r, "coll")); err != nil {
		return err
	}
	return emptySuccess(w)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) error {
	params, err := readParams(r)
	if err != nil {
		return err
	}
	doc, ok := lookup(params, "document").(bson.D)
	if !ok {
		return NewError(http.StatusBadRequest, "'document' argument not found in the save request.")
	}
	size, err := documentSize(doc)
	if err != nil {
		return err
	}
	if err := s.checkQuota(r, size); err != nil {
		return err
	}
	if err := s.store.Save(r.Context(), collName(r), doc); err != nil {
		return err
	}
	if err := s.store.AddCollection(r.Context(), pathVar(r, "res_id"), pathVar(r, "coll")); err != nil {
		return err
	}
	return emptySuccess(w)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) error {
	params, err := readParams(r)
	if err != nil {
		return err
	}
	constraint := lookup(params, "constraint")
	justOne, _ := lookup(params, "just_one").(bool)
	if err := s.store.Remove(r.Context(), collName(r), constraint, justOne); err != nil {
		return err
	}
	return emptySuccess(w)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) error {
	params, err := readParams(r)
	if err != nil {
		return err
	}
	query, update := lookup(params, "query"), lookup(params, "update")
	if query == nil || update == nil {
		return NewError(http.StatusBadRequest, "update requires spec and document arguments")
	}
	upsert, _ := lookup(params, "upsert").(bool)
	multi, _ := lookup(params, "multi").(bool)

	// Worst case growth: the update document once per matching document.
	affected, err := s.store.Count(r.Context(), collName(r), query, 0, 0)
	if err != nil {
		return err
	}
	size, err := documentSize(update)
	if err != nil {
		return err
	}
	if err := s.checkQuota(r, size*affected); err != nil {
		return err
	}
	if err := s.store.Update(r.Context(), collName(r), query, update, upsert, multi); err != nil {
		return err
	}
	if upsert {
		if err := s.store.AddCollection(r.Context(), pathVar(r, "res_id"), pathVar(r, "coll")); err != nil {
			return err
		}
	}
	return emptySuccess(w)
}

func (s *Server) aggregate(w http.ResponseWriter, r *http.Request) error {
	params, err := readParams(r)
	if err != nil {
		return err
	}
	pipeline, ok := lookup(params, "pipeline").(bson.A)
	if !ok {
		return NewError(http.StatusBadRequest, "aggregate requires a pipeline array")
	}
	docs, err := s.store.Aggregate(r.Context(), collName(r), pipeline)
	if err != nil {
		return err
	}
	return writeJSON(w, bson.D{{Key: "result", Value: docs}, {Key: "ok", Value: 1}})
}

func (s *Server) drop(w http.ResponseWriter, r *http.Request) error {
	if err := s.dropCollection(r, pathVar(r, "coll")); err != nil {
		return err
	}
	return emptySuccess(w)
}

func (s *Server) count(w http.ResponseWriter, r *http.Request) error {
	params, err := readParams(r)
	if err != nil {
		return err
	}
	skip, err := intParam(params, "skip")
	if err != nil {
		return err
	}
	limit, err := intParam(params, "limit")
	if err != nil {
		return err
	}
	n, err := s.store.Count(r.Context(), collName(r), lookup(params, "query"), skip, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, bson.D{{Key: "count", Value: n}})
}

func (s *Server) collectionNames(w http.ResponseWriter, r *http.Request) error {
	names, err := s.store.CollectionNames(r.Context(), pathVar(r, "res_id"))
	if err != nil {
		return err
	}
	return writeJSON(w, bson.D{{Key: "result", Value: names}})
}

func (s *Server) dropDatabase(w http.ResponseWriter, r *http.Request) error {
	names, err := s.store.CollectionNames(r.Context(), pathVar(r, "res_id"))
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.dropCollection(r, name); err != nil {
			return err
		}
	}
	return emptySuccess(w)
}

func (s *Server) dropCollection(r *http.Request, name string) error {
	resID := pathVar(r, "res_id")
	if err := s.store.Drop(r.Context(), internalCollName(resID, name)); err != nil {
		return err
	}
	return s.store.RemoveCollection(r.Context(), resID, name)
}

func (s *Server) checkQuota(r *http.Request, reqSize int64) error {
	size, err := s.store.CollectionSize(r.Context(), collName(r))
	if err != nil {
		return err
	}
	if size+reqSize > s.cfg.QuotaCollectionSize {
		return NewError(http.StatusForbidden, "Collection size exceeded")
	}
	return nil
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func collName(r *http.Request) string {
	return internalCollName(pathVar(r, "res_id"), pathVar(r, "coll"))
}

// readParams decodes the request parameters. GET requests carry them as
// the escaped query string, everything else as the body.
func readParams(r *http.Request) (bson.D, error) {
	var raw []byte
	if r.Method == http.MethodGet {
		q, err := url.QueryUnescape(r.URL.RawQuery)
		if err != nil {
			return nil, &Error{Status: http.StatusBadRequest, Reason: "Error parsing JSON data",
				Detail: "Invalid GET parameter data", Err: err}
		}
		raw = []byte(q)
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			return nil, badRequest("Error reading request body", err)
		}
		raw = body
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return bson.D{}, nil
	}
	var params bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &params); err != nil {
		return nil, &Error{Status: http.StatusBadRequest, Reason: "Error parsing JSON data",
			Detail: "Invalid parameter data", Err: err}
	}
	return params, nil
}

func lookupOK(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func lookup(d bson.D, key string) any {
	v, _ := lookupOK(d, key)
	return v
}

func intParam(d bson.D, key string) (int64, error) {
	switch v := lookup(d, key).(type) {
	case nil:
		return 0, nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v == math.Trunc(v) {
			return int64(v), nil
		}
	}
	return 0, NewError(http.StatusBadRequest, fmt.Sprintf("%s must be an integer", key))
}

// documentSize is the BSON encoded size of a document. Values that are not
// documents are measured inside a one field wrapper.
func documentSize(v any) (int64, error) {
	var raw []byte
	var err error
	switch v.(type) {
	case bson.D, bson.M:
		raw, err = bson.Marshal(v)
	default:
		raw, err = bson.Marshal(bson.D{{Key: "v", Value: v}})
	}
	if err != nil {
		return 0, badRequest("Error encoding document", err)
	}
	return int64(len(raw)), nil
}

func writeJSON(w http.ResponseWriter, doc bson.D) error {
	body, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return &Error{
			Status: http.StatusInternalServerError,
			Reason: "Error in find while trying to convert the results to JSON format.",
			Err:    err,
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(body)
	return err
}

func emptySuccess(w http.ResponseWriter) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

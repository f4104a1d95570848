package mws

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mongodb-labs/mongo-web-shell-sub000/otel_metrics"
	"github.com/mongodb-labs/mongo-web-shell-sub000/shared"
)

const (
	requestIDHeader = "X-Request-Id"
	corsMethods     = "DELETE, GET, OPTIONS, POST, PUT"
	corsMaxAge      = "21600"
)

// handlerFunc is a route handler. A returned error is written as the JSON
// error body.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

type middleware func(handlerFunc) handlerFunc

// cors answers preflight requests and marks every response as readable
// from any origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Max-Age", corsMaxAge)
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), shared.RequestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// route adapts a handler to net/http: it applies the route middlewares,
// turns panics and errors into error bodies, then logs and measures the
// request.
func (s *Server) route(name string, h handlerFunc, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	routeAttr := attribute.String(otel_metrics.RouteKey, name)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := r.Context()
		if resID := pathVar(r, "res_id"); resID != "" {
			ctx = context.WithValue(ctx, shared.ResIDKey, resID)
			r = r.WithContext(ctx)
		}

		err := s.recoverPanic(name, h, rec, r)
		if err != nil {
			e := asError(err, s.cfg.Debug)
			if e.Status >= http.StatusInternalServerError {
				slog.ErrorContext(ctx, "request failed", slog.String("route", name), slog.Any("error", err))
			} else {
				slog.InfoContext(ctx, "request rejected", slog.String("route", name),
					slog.Int("status", e.Status), slog.String("reason", e.Reason))
			}
			writeError(rec, r, e)
		}

		attrs := metric.WithAttributes(routeAttr, attribute.String(otel_metrics.StatusKey, strconv.Itoa(rec.status)))
		s.metrics.RequestsCounter.Add(ctx, 1, attrs)
		if rec.status >= http.StatusBadRequest {
			s.metrics.RequestErrorsCounter.Add(ctx, 1, attrs)
		}
		s.metrics.RequestDurationHist.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(routeAttr))
		slog.DebugContext(ctx, "request served", slog.String("route", name), slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)))
	})
}

func (s *Server) recoverPanic(name string, h handlerFunc, w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(r.Context(), "panic recovered in handler",
				slog.String("route", name),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			err = NewError(http.StatusInternalServerError, "internal server error")
		}
	}()
	return h(w, r)
}

func sessionFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(shared.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// checkSession rejects requests whose session does not own the resource
// named in the path.
func (s *Server) checkSession(next handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		sessionID := sessionFromRequest(r)
		if sessionID == "" {
			return NewError(http.StatusUnauthorized, "There is no session_id cookie")
		}
		ok, err := s.store.HasAccess(r.Context(), pathVar(r, "res_id"), sessionID)
		if err != nil {
			return err
		}
		if !ok {
			return NewError(http.StatusForbidden, "Session error. User does not have access to res_id")
		}
		return next(w, r.WithContext(context.WithValue(r.Context(), shared.SessionIDKey, sessionID)))
	}
}

func (s *Server) rateLimit(next handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		sessionID := sessionFromRequest(r)
		if sessionID == "" {
			return NewError(http.StatusUnauthorized, "Cannot rate limit without session_id cookie")
		}
		if !s.limiter.Allow(sessionID) {
			s.metrics.RateLimitedCounter.Add(r.Context(), 1)
			return NewError(http.StatusTooManyRequests, "Rate limit exceeded")
		}
		return next(w, r)
	}
}

package mws

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ExpireResources removes the resources idle for longer than the session
// expiry and drops their collections. It returns how many it removed.
func (s *Server) ExpireResources(ctx context.Context) (int, error) {
	before := s.now().Add(-s.cfg.SessionExpiry)
	clients, err := s.store.ExpiredClients(ctx, before)
	if err != nil {
		return 0, err
	}

	var errs []error
	removed := 0
	for _, c := range clients {
		if err := s.store.RemoveClient(ctx, c); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, name := range c.Collections {
			if err := s.store.Drop(ctx, internalCollName(c.ResID, name)); err != nil {
				errs = append(errs, err)
			}
		}
		removed++
	}
	if removed > 0 {
		s.metrics.ResourcesExpiredCounter.Add(ctx, int64(removed))
	}
	slog.InfoContext(ctx, "timed out expired sessions",
		slog.Time("before", before), slog.Int("removed", removed))
	return removed, errors.Join(errs...)
}

// expiryLoop runs ExpireResources every interval until ctx is done. It
// also forgets rate limit state of idle sessions.
func (s *Server) expiryLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SessionExpiryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.ExpireResources(ctx); err != nil {
				slog.ErrorContext(ctx, "failed to expire resources", slog.Any("error", err))
			}
			s.limiter.Sweep()
		}
	}
}

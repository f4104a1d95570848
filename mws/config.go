package mws

import (
	"errors"
	"fmt"
	"time"

	"github.com/mongodb-labs/mongo-web-shell-sub000/internal"
)

//nolint:govet // fieldalignment: readability preferred
type Config struct {
	Port                  uint16
	MongoURL              string
	MongoDB               string
	RateLimitQuota        int
	RateLimitExpiry       time.Duration
	QuotaCollectionSize   int64
	SessionExpiry         time.Duration
	SessionExpiryInterval time.Duration
	// Debug includes internal error messages in error bodies.
	Debug             bool
	EnableOtelMetrics bool
}

// ConfigFromEnv reads the MWS_* environment.
func ConfigFromEnv() Config {
	return Config{
		Port:                  internal.MWSPort(),
		MongoURL:              internal.MWSMongoURL(),
		MongoDB:               internal.MWSMongoDatabase(),
		RateLimitQuota:        internal.MWSRateLimitQuota(),
		RateLimitExpiry:       internal.MWSRateLimitExpiry(),
		QuotaCollectionSize:   internal.MWSQuotaCollectionSize(),
		SessionExpiry:         internal.MWSSessionExpiry(),
		SessionExpiryInterval: internal.MWSSessionExpiryInterval(),
		Debug:                 internal.MWSDebug(),
		EnableOtelMetrics:     internal.MWSEnableOtelMetrics(),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.MongoURL == "" {
		errs = append(errs, errors.New("mongo url is required"))
	}
	if c.MongoDB == "" {
		errs = append(errs, errors.New("mongo database is required"))
	}
	if c.RateLimitQuota <= 0 {
		errs = append(errs, fmt.Errorf("rate limit quota must be positive, got %d", c.RateLimitQuota))
	}
	if c.RateLimitExpiry <= 0 {
		errs = append(errs, fmt.Errorf("rate limit expiry must be positive, got %s", c.RateLimitExpiry))
	}
	if c.QuotaCollectionSize <= 0 {
		errs = append(errs, fmt.Errorf("collection size quota must be positive, got %d", c.QuotaCollectionSize))
	}
	if c.SessionExpiry <= 0 || c.SessionExpiryInterval <= 0 {
		errs = append(errs, errors.New("session expiry and its check interval must be positive"))
	}
	return errors.Join(errs...)
}

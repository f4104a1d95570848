package cmd

import (
	"context"
	"time"

	"github.com/mongodb-labs/mongo-web-shell-sub000/mws"
)

//nolint:govet // fieldalignment: readability preferred
type ServerParams struct {
	Port                  uint16
	MongoURL              string
	MongoDB               string
	RateLimitQuota        int
	RateLimitExpiry       time.Duration
	QuotaCollectionSize   int64
	SessionExpiry         time.Duration
	SessionExpiryInterval time.Duration
	Debug                 bool
	EnableOtelMetrics     bool
}

func ServerMain(ctx context.Context, params *ServerParams) error {
	return mws.Run(ctx, mws.Config{
		Port:                  params.Port,
		MongoURL:              params.MongoURL,
		MongoDB:               params.MongoDB,
		RateLimitQuota:        params.RateLimitQuota,
		RateLimitExpiry:       params.RateLimitExpiry,
		QuotaCollectionSize:   params.QuotaCollectionSize,
		SessionExpiry:         params.SessionExpiry,
		SessionExpiryInterval: params.SessionExpiryInterval,
		Debug:                 params.Debug,
		EnableOtelMetrics:     params.EnableOtelMetrics,
	})
}

package internal

import (
	"time"

	"github.com/mongodb-labs/mongo-web-shell-sub000/shared"
)

// This file catalogs the MWS_* environment variables used throughout the codebase.

// MWS_BASE_URL, the resource server prefix every shell request is built on
func MWSBaseURL() string {
	return GetEnvString("MWS_BASE_URL", "http://localhost:5000/mws/")
}

// MWS_SHELL_BATCH_SIZE
func MWSShellBatchSize() int {
	return getEnvInt("MWS_SHELL_BATCH_SIZE", shared.DefaultShellBatchSize)
}

// MWS_KEEP_ALIVE_INTERVAL
func MWSKeepAliveInterval() time.Duration {
	return getEnvDuration("MWS_KEEP_ALIVE_INTERVAL", shared.DefaultKeepAliveInterval)
}

// MWS_HISTORY_SIZE
func MWSHistorySize() int {
	return getEnvInt("MWS_HISTORY_SIZE", shared.DefaultHistorySize)
}

// MWS_HISTORY_DIR, empty keeps history in memory only
func MWSHistoryDir() string {
	return GetEnvString("MWS_HISTORY_DIR", "")
}

// MWS_PORT
func MWSPort() uint16 {
	return getEnvUint16("MWS_PORT", 5000)
}

// MWS_MONGO_URL
func MWSMongoURL() string {
	return GetEnvString("MWS_MONGO_URL", "mongodb://localhost:27017")
}

// MWS_MONGO_DB
func MWSMongoDatabase() string {
	return GetEnvString("MWS_MONGO_DB", "mws")
}

// MWS_RATELIMIT_QUOTA, requests allowed per session inside one expiry window
func MWSRateLimitQuota() int {
	return getEnvInt("MWS_RATELIMIT_QUOTA", 500)
}

// MWS_RATELIMIT_EXPIRY
func MWSRateLimitExpiry() time.Duration {
	return getEnvDuration("MWS_RATELIMIT_EXPIRY", time.Minute)
}

// MWS_QUOTA_COLLECTION_SIZE in bytes
func MWSQuotaCollectionSize() int64 {
	return getEnvInt64("MWS_QUOTA_COLLECTION_SIZE", 5*1024*1024)
}

// MWS_SESSION_EXPIRY, idle time after which a resource and its collections are dropped
func MWSSessionExpiry() time.Duration {
	return getEnvDuration("MWS_SESSION_EXPIRY", 30*time.Minute)
}

// MWS_SESSION_EXPIRY_INTERVAL
func MWSSessionExpiryInterval() time.Duration {
	return getEnvDuration("MWS_SESSION_EXPIRY_INTERVAL", 10*time.Minute)
}

// MWS_DEBUG exposes internal error details in server responses
func MWSDebug() bool {
	return getEnvBool("MWS_DEBUG", false)
}

// MWS_ENABLE_OTEL_METRICS
func MWSEnableOtelMetrics() bool {
	return getEnvBool("MWS_ENABLE_OTEL_METRICS", false)
}

// MWS_OTEL_METRICS_NAMESPACE
func MWSOtelMetricsNamespace() string {
	return GetEnvString("MWS_OTEL_METRICS_NAMESPACE", "")
}

// MWS_VERSION_SHA_SHORT
func MWSVersionShaShort() string {
	return GetEnvString("MWS_VERSION_SHA_SHORT", "unknown")
}

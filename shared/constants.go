package shared

import "time"

const (
	DefaultShellBatchSize    = 20
	DefaultKeepAliveInterval = 30 * time.Second
	DefaultHistorySize       = 100

	ClientsCollection = "clients"
	SessionCookieName = "mws_session"
)

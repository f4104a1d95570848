package shared

type ContextKey string

const (
	ResIDKey     ContextKey = "res_id"
	SessionIDKey ContextKey = "session_id"
	ShellIDKey   ContextKey = "shell_id"
	RequestIDKey ContextKey = "request_id"
)

package constants

type ContextKey string

const (
	AppKey      ContextKey = "app"
	PoolKey     ContextKey = "pool"
	TxKey       ContextKey = "tx"
	TenantIDKey ContextKey = "tenant_id"
	UserKey     ContextKey = "user"
	LoggerKey   ContextKey = "logger"
	ParamsKey   ContextKey = "params"
	RequestIDKey ContextKey = "request_id"
)

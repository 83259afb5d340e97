package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldReceiptID  = "receipt_id"
	FieldVendor     = "vendor"
	FieldAmount     = "amount"
	FieldPeriod     = "period"
	FieldCacheKey   = "cache_key"
	FieldVersion    = "cache_version"
	FieldURL        = "url"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentReceipt    = "receipt"
	ComponentSession    = "session"
	ComponentBackend    = "backend"
	ComponentStorage    = "storage"
	ComponentAssetCache = "assetcache"
	ComponentExtract    = "extract"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentExport     = "export"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpReload    = "reload"
	OpInstall   = "install"
	OpActivate  = "activate"
	OpFetch     = "fetch"
	OpExtract   = "extract"
	OpExportCSV = "export_csv"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

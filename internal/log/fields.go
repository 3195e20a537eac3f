package log

// Field names shared by every binary so log queries work across them.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldCreditID    = "credit_id"
	FieldCreditDate  = "credit_date"
	FieldAmountCents = "amount_cents"
	FieldAuthMode    = "auth_mode"
	FieldBackend     = "backend"
)

const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentCredit   = "credit"
	ComponentAuth     = "auth"
	ComponentStorage  = "storage"
	ComponentWorker   = "worker"
	ComponentSheets   = "sheets"
	ComponentCache    = "cache"
	ComponentSecurity = "security"
)

// Operation names, one per ledger or auth action.
const (
	OpCreate  = "create"
	OpRead    = "read"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpList    = "list"
	OpSummary = "summary"
	OpCompare = "compare"
	OpLogin   = "login"
	OpLogout  = "logout"
)

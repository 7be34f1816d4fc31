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
)

// Components defines standard component names
const (
	ComponentLedger    = "ledger"
	ComponentDashboard = "dashboard"
	ComponentExport    = "export"
)

package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"
	FieldRoute     = "route"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUsername = "username"

	// Connection
	FieldConnID    = "conn_id"
	FieldEventType = "event_type"

	// Chat entities
	FieldMessageID = "message_id"
	FieldGroup     = "group"
	FieldPollID    = "poll_id"

	// Scheduler
	FieldSweep   = "sweep"
	FieldClaimed = "claimed"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)

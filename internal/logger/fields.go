package logger

// Standard field names for consistent logging.
const (
	FieldService    = "service"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldUserID     = "user_id"
	FieldEventID    = "event_id"
	FieldActivityID = "activity_id"
	FieldReason     = "reason"
	FieldRequestID  = "request_id"
)

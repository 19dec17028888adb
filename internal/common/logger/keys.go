package logger

// Structured logging keys used across the SDK.
const (
	KeyTemplate  = "template"
	KeyLogRef    = "logRef"
	KeySessionID = "sessionId"
	KeyWorkItem  = "workItem"
	KeyOperation = "operation"
	KeyDuration  = "durationMs"
	KeyError     = "error"

	// a context-dependent count of something
	KeyCount = "count"
)

package logger

import "time"

// Standard field keys.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatus        = "status"
	FieldAttempt       = "attempt"
	FieldDelay         = "delay_ms"
	FieldCode          = "code"
	FieldSubject       = "subject"
	FieldWaiters       = "waiters"
	FieldError         = "error"
	FieldDuration      = "duration_ms"
)

// Fields builds a map from alternating key-value pairs.
//
//	log.Info("renewed", logger.Fields("waiters", 3))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// DurationFields creates fields for a timed operation.
func DurationFields(d time.Duration, kvs ...interface{}) map[string]interface{} {
	m := Fields(kvs...)
	m[FieldDuration] = d.Milliseconds()
	return m
}

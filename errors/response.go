package errors

import (
	"encoding/json"
)

// errorEnvelope is the error body the API returns:
//
//	{"error": {"code": "...", "message": "...", "details": {...}}, "correlation_id": "..."}
//
// Some endpoints return "error" as a bare string; that is accepted as the message.
type errorEnvelope struct {
	Error         json.RawMessage `json:"error"`
	CorrelationID string          `json:"correlation_id"`
}

type errorPayload struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

// FromResponse builds the normalized error for a non-2xx response. The body
// is parsed when it has the structured error shape; anything else falls back
// to the status table. headerCorrelationID is used when the body has none.
func FromResponse(status int, body []byte, headerCorrelationID string) *Error {
	var code ErrorCode
	var message string
	var details map[string]any
	correlationID := headerCorrelationID

	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		if env.CorrelationID != "" {
			correlationID = env.CorrelationID
		}
		code, message, details = parsePayload(env.Error)
	}

	e := HTTP(status, code, message)
	e.Details = details
	e.CorrelationID = correlationID
	return e
}

func parsePayload(raw json.RawMessage) (ErrorCode, string, map[string]any) {
	if len(raw) == 0 {
		return "", "", nil
	}
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return "", text, nil
	}
	var p errorPayload
	if json.Unmarshal(raw, &p) != nil {
		return "", "", nil
	}
	return ErrorCode(p.Code), p.Message, parseDetails(p.Details)
}

// parseDetails keeps object details as-is and wraps any other JSON value.
func parseDetails(raw json.RawMessage) map[string]any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var obj map[string]any
	if json.Unmarshal(raw, &obj) == nil {
		return obj
	}
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return nil
	}
	return map[string]any{"details": v}
}

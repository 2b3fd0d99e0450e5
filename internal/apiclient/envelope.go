package apiclient

import (
	"bytes"
	"encoding/json"
	"strings"
)

// parseBody decodes a response body into a map. Empty bodies decode as {}.
// A JSON value that is not an object (an array, for example) is kept under "data".
func parseBody(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]any); ok {
		return obj, nil
	}
	if v == nil {
		return map[string]any{}, nil
	}
	return map[string]any{"data": v}, nil
}

// ExtractMessage finds a human readable message in an error envelope.
// The backend is not uniform, so fields are tried in order:
// message, error, data.message, data.error, then the status default.
func ExtractMessage(body map[string]any, status int) string {
	if msg := messageFrom(body); msg != "" {
		return msg
	}
	return DefaultMessage(status)
}

func messageFrom(body map[string]any) string {
	if body == nil {
		return ""
	}
	if msg := stringField(body, "message"); msg != "" {
		return msg
	}
	switch v := body["error"].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case map[string]any:
		if msg := stringField(v, "message"); msg != "" {
			return msg
		}
	}
	if data, ok := body["data"].(map[string]any); ok {
		if msg := stringField(data, "message"); msg != "" {
			return msg
		}
		if msg := stringField(data, "error"); msg != "" {
			return msg
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// reportsFailure is true only for an explicit success: false.
func reportsFailure(body map[string]any) bool {
	v, ok := body["success"]
	if !ok {
		return false
	}
	b, isBool := v.(bool)
	return isBool && !b
}

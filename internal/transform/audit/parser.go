package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"eventrelay/pkg/models"
)

// Parse decodes an upstream audit event. Both snake_case and camelCase field
// names are accepted; numbers keep full precision.
func Parse(data []byte) (models.AuditEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return models.AuditEvent{}, fmt.Errorf("decode audit event: %w", err)
	}
	if raw == nil {
		return models.AuditEvent{}, fmt.Errorf("decode audit event: payload is not an object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return models.AuditEvent{}, fmt.Errorf("decode audit event: trailing data after object")
	}

	timestamp, err := getTimestamp(raw, "timestamp")
	if err != nil {
		return models.AuditEvent{}, err
	}

	event := models.AuditEvent{
		EventID:            getString(raw, "event_id", "eventId"),
		EventName:          getString(raw, "event_name", "eventName"),
		ComponentID:        getString(raw, "component_id", "componentId"),
		Timestamp:          timestamp,
		TimestampFormatted: getString(raw, "timestamp_formatted", "timestampFormatted"),
	}
	if v, ok := getPath(raw, "extensions"); ok {
		if m, ok := v.(map[string]interface{}); ok {
			event.Extensions = m
		}
	}
	return event, nil
}

func getString(root map[string]interface{}, paths ...string) string {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok {
			switch val := v.(type) {
			case string:
				return val
			case json.Number:
				return val.String()
			case fmt.Stringer:
				return val.String()
			}
		}
	}
	return ""
}

// getTimestamp reads an integral epoch value. Absent or null values yield 0
// and are reported as missing by Build; fractional, out-of-range or
// non-numeric values are rejected.
func getTimestamp(root map[string]interface{}, path string) (int64, error) {
	v, ok := getPath(root, path)
	if !ok || v == nil {
		return 0, nil
	}

	var text string
	switch val := v.(type) {
	case json.Number:
		text = val.String()
	case string:
		text = strings.TrimSpace(val)
	default:
		return 0, &FieldError{Field: path, Err: ErrInvalidField, Reason: fmt.Sprintf("unsupported type %T", v)}
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, &FieldError{Field: path, Err: ErrInvalidField, Reason: fmt.Sprintf("%q is not a number", text)}
	}
	if f != math.Trunc(f) {
		return 0, &FieldError{Field: path, Err: ErrInvalidField, Reason: fmt.Sprintf("%s is not an integer", text)}
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, &FieldError{Field: path, Err: ErrInvalidField, Reason: fmt.Sprintf("%s is out of range", text)}
	}
	return int64(f), nil
}

func getPath(root map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = root
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}

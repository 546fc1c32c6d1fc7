package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"eventrelay/internal/logger"
	"eventrelay/pkg/models"
)

var (
	// ErrMissingField is returned when a required event field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidField is returned when a required field holds an unusable value.
	ErrInvalidField = errors.New("invalid field")
	// ErrMalformedEvidence marks evidence that cannot be filtered. It is
	// logged and treated as absent evidence, never returned from Build.
	ErrMalformedEvidence = errors.New("malformed evidence")
)

// evidenceAllowlist lists the evidence keys that survive cleansing.
var evidenceAllowlist = []string{"validityScore"}

// FieldError reports the required field that was missing or invalid.
// A nil Err means the field was missing.
type FieldError struct {
	Field  string
	Err    error
	Reason string
}

func (e *FieldError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s: %s", e.Unwrap(), e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Unwrap(), e.Field)
}

func (e *FieldError) Unwrap() error {
	if e.Err == nil {
		return ErrMissingField
	}
	return e.Err
}

// Build creates a cleansed event from the required fields and optional extensions.
// Only extensions.evidence is kept, reduced to allowlisted keys; when nothing
// survives the event carries no extensions at all.
func Build(eventID, eventName, componentID string, timestamp int64, timestampFormatted string, extensions map[string]interface{}) (*models.CleansedEvent, error) {
	switch {
	case eventID == "":
		return nil, &FieldError{Field: "event_id"}
	case eventName == "":
		return nil, &FieldError{Field: "event_name"}
	case componentID == "":
		return nil, &FieldError{Field: "component_id"}
	case timestamp == 0:
		return nil, &FieldError{Field: "timestamp"}
	case timestampFormatted == "":
		return nil, &FieldError{Field: "timestamp_formatted"}
	}

	var ext *models.Extensions
	evidence, err := evidenceFrom(extensions)
	if err != nil {
		logger.Debugf("Ignoring evidence for event %s: %v", eventID, err)
	}
	if filtered := FilterEvidence(evidence); len(filtered) > 0 {
		typed, err := toEvidence(filtered)
		if err != nil {
			logger.Debugf("Ignoring evidence for event %s: %v", eventID, err)
		} else if !typed.Empty() {
			ext = &models.Extensions{Evidence: typed}
		}
	}

	return models.NewCleansedEvent(eventID, eventName, componentID, timestamp, timestampFormatted, ext), nil
}

// FromAuditEvent builds a cleansed event from a decoded upstream event.
func FromAuditEvent(event models.AuditEvent) (*models.CleansedEvent, error) {
	return Build(event.EventID, event.EventName, event.ComponentID, event.Timestamp, event.TimestampFormatted, event.Extensions)
}

// FilterEvidence returns a new map holding only the allowlisted evidence keys.
// The input is not modified. A nil result means nothing was retained.
func FilterEvidence(evidence map[string]interface{}) map[string]interface{} {
	if len(evidence) == 0 {
		return nil
	}
	var out map[string]interface{}
	for _, key := range evidenceAllowlist {
		v, ok := evidence[key]
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]interface{}, len(evidenceAllowlist))
		}
		out[key] = v
	}
	return out
}

func evidenceFrom(extensions map[string]interface{}) (map[string]interface{}, error) {
	if extensions == nil {
		return nil, nil
	}
	switch v := extensions["evidence"].(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: evidence is %T, not an object", ErrMalformedEvidence, v)
	}
}

func toEvidence(filtered map[string]interface{}) (models.Evidence, error) {
	var evidence models.Evidence
	if raw, ok := filtered["validityScore"]; ok && raw != nil {
		score, err := toFloat(raw)
		if err != nil {
			return models.Evidence{}, fmt.Errorf("%w: validityScore: %v", ErrMalformedEvidence, err)
		}
		evidence.ValidityScore = &score
	}
	return evidence, nil
}

func toFloat(v interface{}) (float64, error) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}

package models

import "encoding/json"

// AuditEvent is a raw audit event as produced by the upstream event source.
type AuditEvent struct {
	EventID            string                 `json:"event_id"`
	EventName          string                 `json:"event_name"`
	ComponentID        string                 `json:"component_id"`
	Timestamp          int64                  `json:"timestamp"`
	TimestampFormatted string                 `json:"timestamp_formatted"`
	Extensions         map[string]interface{} `json:"extensions,omitempty"`
}

// Evidence is the allowlisted part of extensions.evidence.
type Evidence struct {
	ValidityScore *float64 `json:"validityScore,omitempty"`
}

// Empty reports whether no allowlisted evidence field is set.
func (e Evidence) Empty() bool {
	return e.ValidityScore == nil
}

// Extensions is the only extension shape a cleansed event carries.
type Extensions struct {
	Evidence Evidence `json:"evidence"`
}

// CleansedEvent is an audit event after evidence allowlisting.
// Fields are set once by NewCleansedEvent and only exposed through accessors.
type CleansedEvent struct {
	eventID            string
	eventName          string
	componentID        string
	timestamp          int64
	timestampFormatted string
	extensions         *Extensions
}

// NewCleansedEvent creates a cleansed event. The extensions value is copied.
func NewCleansedEvent(eventID, eventName, componentID string, timestamp int64, timestampFormatted string, extensions *Extensions) *CleansedEvent {
	e := &CleansedEvent{
		eventID:            eventID,
		eventName:          eventName,
		componentID:        componentID,
		timestamp:          timestamp,
		timestampFormatted: timestampFormatted,
	}
	if extensions != nil && !extensions.Evidence.Empty() {
		e.extensions = copyExtensions(extensions)
	}
	return e
}

func (e *CleansedEvent) EventID() string            { return e.eventID }
func (e *CleansedEvent) EventName() string          { return e.eventName }
func (e *CleansedEvent) ComponentID() string        { return e.componentID }
func (e *CleansedEvent) Timestamp() int64           { return e.timestamp }
func (e *CleansedEvent) TimestampFormatted() string { return e.timestampFormatted }

// Extensions returns a copy of the attached extensions, or nil when none are attached.
func (e *CleansedEvent) Extensions() *Extensions {
	if e.extensions == nil {
		return nil
	}
	return copyExtensions(e.extensions)
}

type cleansedEventJSON struct {
	EventID            string      `json:"event_id"`
	EventName          string      `json:"event_name"`
	ComponentID        string      `json:"component_id"`
	Timestamp          int64       `json:"timestamp"`
	TimestampFormatted string      `json:"timestamp_formatted"`
	Extensions         *Extensions `json:"extensions,omitempty"`
}

// MarshalJSON encodes the event with the upstream field names.
func (e *CleansedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(cleansedEventJSON{
		EventID:            e.eventID,
		EventName:          e.eventName,
		ComponentID:        e.componentID,
		Timestamp:          e.timestamp,
		TimestampFormatted: e.timestampFormatted,
		Extensions:         e.extensions,
	})
}

func copyExtensions(in *Extensions) *Extensions {
	out := &Extensions{}
	if in.Evidence.ValidityScore != nil {
		score := *in.Evidence.ValidityScore
		out.Evidence.ValidityScore = &score
	}
	return out
}

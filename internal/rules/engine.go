package rules

import "eventrelay/pkg/models"

// Engine decides whether a cleansed event is suppressed before publish.
type Engine interface {
	// Match returns the ids of the rules that matched the event.
	Match(event *models.CleansedEvent) []string
}

// NoopEngine never matches.
type NoopEngine struct{}

// Match returns nil.
func (n *NoopEngine) Match(event *models.CleansedEvent) []string {
	return nil
}

package handoff

import "strings"

// EventKind tags a turn event.
type EventKind string

const (
	// DelegationRequested: Agent hands control to Target.
	DelegationRequested EventKind = "delegation_requested"
	// SpecialistCompleted: a specialist produced a direct reply.
	SpecialistCompleted EventKind = "specialist_completed"
	// WorkflowCompleted: the run ended with this message.
	WorkflowCompleted EventKind = "workflow_completed"
)

// Event is one entry of the ordered stream produced by a run.
type Event struct {
	Kind   EventKind `json:"kind"`
	Agent  string    `json:"agent"`
	Target string    `json:"target,omitempty"`
	Text   string    `json:"text,omitempty"`
	Note   string    `json:"note,omitempty"`
}

// HasText reports whether the event carries a reply candidate.
func (e Event) HasText() bool {
	return strings.TrimSpace(e.Text) != ""
}

// Reduce returns the last event with non-empty text, regardless of kind.
func Reduce(events []Event) (Event, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].HasText() {
			return events[i], true
		}
	}
	return Event{}, false
}

package handoff

import "github.com/BaSui01/moneta/types"

// DefaultUserMessageLimit is the canonical user-message bound.
const DefaultUserMessageLimit = 10

// TerminationCondition is evaluated against the running history after every reply.
type TerminationCondition func(history []types.Message) bool

// UserMessageLimit terminates once the history holds at least limit user messages.
func UserMessageLimit(limit int) TerminationCondition {
	return func(history []types.Message) bool {
		return types.Conversation(history).CountRole(types.RoleUser) >= limit
	}
}

// Never keeps the run going until the coordinator replies or MaxSteps is hit.
func Never() TerminationCondition {
	return func([]types.Message) bool { return false }
}

// Any terminates when one of the conditions holds.
func Any(conds ...TerminationCondition) TerminationCondition {
	return func(history []types.Message) bool {
		for _, c := range conds {
			if c(history) {
				return true
			}
		}
		return false
	}
}

package usecase

import (
	"sort"

	"github.com/BaSui01/moneta/agent/handoff"
)

// UseCase is a named coordinator plus its specialists.
type UseCase struct {
	ID          string
	Coordinator handoff.AgentDefinition
	Specialists []handoff.AgentDefinition
}

// Capabilities returns the sorted, de-duplicated capability names the use case needs.
func (u UseCase) Capabilities() []string {
	seen := make(map[string]struct{})
	for _, def := range append([]handoff.AgentDefinition{u.Coordinator}, u.Specialists...) {
		for _, c := range def.Capabilities {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// All returns every shipped use case, ordered by id.
func All() []UseCase {
	return []UseCase{Banking(), Insurance()}
}

// Lookup finds a shipped use case by id.
func Lookup(id string) (UseCase, bool) {
	for _, u := range All() {
		if u.ID == id {
			return u, true
		}
	}
	return UseCase{}, false
}

// handoffInstruction is appended to every coordinator prompt.
const handoffInstruction = "If the conversation already ends with a specialist's answer to the latest request, reply with an empty message and do not call any tool."

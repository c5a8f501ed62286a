package aggregate

import "github.com/agentidp/agentwatch/internal/model"

// Usage counts token issuances per scope value, in first-seen order so the
// output is stable for a given input ordering.
func Usage(events []model.AccessEvent) []model.UsageEntry {
	if len(events) == 0 {
		return []model.UsageEntry{}
	}

	index := make(map[string]int)
	entries := make([]model.UsageEntry, 0)
	for _, ev := range events {
		scope := ev.Scope.Scope
		if scope == "" {
			scope = "Unknown"
		}
		if i, ok := index[scope]; ok {
			entries[i].Calls++
			continue
		}
		index[scope] = len(entries)
		entries = append(entries, model.UsageEntry{Resource: scope, Calls: 1})
	}
	return entries
}

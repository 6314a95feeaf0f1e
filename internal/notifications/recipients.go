package notifications

import (
	"strings"

	"assetflow/internal/store"
)

// Resolver maps an event type to the recipient set for one version.
type Resolver struct {
	lists map[string][]string
}

// NewResolver uses the merged configuration lists keyed by event type.
func NewResolver(lists map[string][]string) *Resolver {
	cp := make(map[string][]string, len(lists))
	for k, v := range lists {
		cp[strings.ToLower(k)] = append([]string(nil), v...)
	}
	return &Resolver{lists: cp}
}

// Recipients merges configured lists, the per-version lists supplied at upload
// time, and any extra addresses (such as a new assignee). The result is
// trimmed and deduplicated case-insensitively, preserving first-seen order.
func (r *Resolver) Recipients(event store.EventType, version *store.AssetVersion, extra ...string) []string {
	var candidates []string
	if r != nil {
		candidates = append(candidates, r.lists[string(event)]...)
	}
	if version != nil && version.NotifyLists != nil {
		candidates = append(candidates, version.NotifyLists[event]...)
	}
	candidates = append(candidates, extra...)
	return Dedupe(candidates)
}

// Dedupe trims entries, drops blanks, and removes case-insensitive duplicates.
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

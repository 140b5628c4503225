// ABOUTME: Immutable set of prompt snippets keyed by prompt ID.
// ABOUTME: Built once at startup and shared read-only by all pipelines.

package prompt

import (
	"sort"
)

// Snippet is a named block of prompt text.
type Snippet struct {
	ID   string
	Text string
}

// Snapshot is a read-only view of the loaded snippets.
type Snapshot struct {
	snippets map[string]string
}

// NewSnapshot copies the given snippets into a new Snapshot. When IDs repeat the
// last one wins.
func NewSnapshot(snippets []Snippet) Snapshot {
	m := make(map[string]string, len(snippets))
	for _, s := range snippets {
		m[s.ID] = s.Text
	}
	return Snapshot{snippets: m}
}

// Lookup returns the text for an exact prompt ID.
func (s Snapshot) Lookup(id string) (string, bool) {
	text, ok := s.snippets[id]
	return text, ok
}

// Len returns the number of snippets.
func (s Snapshot) Len() int {
	return len(s.snippets)
}

// IDs returns the snippet IDs in sorted order.
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.snippets))
	for id := range s.snippets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Missing returns the IDs from want that are not in the snapshot.
func (s Snapshot) Missing(want ...string) []string {
	var missing []string
	for _, id := range want {
		if _, ok := s.snippets[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

package enrichment

import (
	"strings"

	"grana/internal/domain/transaction"
)

// Normalize canonicalizes a description for exact-match lookup.
func Normalize(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}

// MemoryTable is an exact-match index from normalized description to tag,
// rebuilt from the user's history on every enrichment call.
type MemoryTable struct {
	byDescription map[string]string
	examples      []transaction.Memory // newest first, deduplicated
}

// BuildMemoryTable indexes the user's categorization history. History must be
// ordered newest first; when the same normalized description appears more
// than once, the most recent tag wins.
func BuildMemoryTable(history []transaction.Memory) *MemoryTable {
	table := &MemoryTable{byDescription: make(map[string]string, len(history))}

	for _, entry := range history {
		key := Normalize(entry.Description)
		if key == "" {
			continue
		}
		if _, seen := table.byDescription[key]; seen {
			continue
		}
		table.byDescription[key] = entry.Tag
		table.examples = append(table.examples, entry)
	}

	return table
}

// Lookup returns the remembered tag for a description, if any.
func (t *MemoryTable) Lookup(description string) (string, bool) {
	if t == nil {
		return "", false
	}
	tag, ok := t.byDescription[Normalize(description)]
	return tag, ok
}

// Examples returns up to n deduplicated history entries, newest first.
func (t *MemoryTable) Examples(n int) []transaction.Memory {
	if t == nil || n <= 0 {
		return nil
	}
	if n > len(t.examples) {
		n = len(t.examples)
	}
	return t.examples[:n]
}

// Len returns the number of distinct remembered descriptions.
func (t *MemoryTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byDescription)
}

// Package diff compares two prompt records field by field and, for
// free-text fields, line by line. Compare is pure: no I/O, no state.
package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"promptvc/internal/jsonutil"
	"promptvc/internal/prompt"
)

// ChangeType classifies a field-level change.
type ChangeType string

const (
	Added    ChangeType = "added"
	Removed  ChangeType = "removed"
	Modified ChangeType = "modified"
)

// FieldChange records one changed field. Old is nil for additions, New is
// nil for removals.
type FieldChange struct {
	Field string     `json:"field"`
	Type  ChangeType `json:"type"`
	Old   any        `json:"old"`
	New   any        `json:"new"`
}

func (c FieldChange) String() string {
	switch c.Type {
	case Added:
		return fmt.Sprintf("+ %s: %s", c.Field, formatValue(c.New))
	case Removed:
		return fmt.Sprintf("- %s: %s", c.Field, formatValue(c.Old))
	default:
		return fmt.Sprintf("~ %s: %s -> %s", c.Field, formatValue(c.Old), formatValue(c.New))
	}
}

// Result is the structured change set produced by Compare. Changes are
// ordered lexicographically by field name regardless of insertion order
// in the source records; equal fields are not materialized.
type Result struct {
	Changes []FieldChange
}

// Compare computes the field-level diff between two records: the union of
// fields present with non-null values in either record, each classified
// as added, removed or modified.
func Compare(a, b *prompt.Record) (*Result, error) {
	oldMap := a.ToMap()
	newMap := b.ToMap()

	fields := make(map[string]bool, len(oldMap)+len(newMap))
	for k := range oldMap {
		fields[k] = true
	}
	for k := range newMap {
		fields[k] = true
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	result := &Result{}
	for _, field := range names {
		oldVal, inOld := oldMap[field]
		newVal, inNew := newMap[field]

		switch {
		case !inOld && inNew:
			result.Changes = append(result.Changes, FieldChange{Field: field, Type: Added, New: newVal})
		case inOld && !inNew:
			result.Changes = append(result.Changes, FieldChange{Field: field, Type: Removed, Old: oldVal})
		default:
			equal, err := valuesEqual(oldVal, newVal)
			if err != nil {
				return nil, err
			}
			if !equal {
				result.Changes = append(result.Changes, FieldChange{Field: field, Type: Modified, Old: oldVal, New: newVal})
			}
		}
	}
	return result, nil
}

// HasChanges reports whether the two records differed at all.
func (r *Result) HasChanges() bool {
	return len(r.Changes) > 0
}

// Summary returns a one-line change count, e.g. "1 added, 2 modified".
func (r *Result) Summary() string {
	if !r.HasChanges() {
		return "No changes"
	}

	var added, removed, modified int
	for _, c := range r.Changes {
		switch c.Type {
		case Added:
			added++
		case Removed:
			removed++
		case Modified:
			modified++
		}
	}

	var parts []string
	if added > 0 {
		parts = append(parts, fmt.Sprintf("%d added", added))
	}
	if removed > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", removed))
	}
	if modified > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", modified))
	}
	return strings.Join(parts, ", ")
}

// Format renders the full human-readable diff, grouping changes by field.
// Modified free-text fields get a unified line diff with the given amount
// of context instead of an opaque before/after blob.
func (r *Result) Format(contextLines int) string {
	if !r.HasChanges() {
		return "No changes detected."
	}

	var sb strings.Builder
	rule := strings.Repeat("=", 60)
	sb.WriteString(rule + "\n")
	sb.WriteString("PROMPT DIFF\n")
	sb.WriteString(rule + "\n")

	for _, c := range r.Changes {
		sb.WriteString("\n")
		if prompt.TextFields[c.Field] {
			sb.WriteString(fmt.Sprintf("Field: %s\n", c.Field))
			sb.WriteString(strings.Repeat("-", 60) + "\n")
			switch c.Type {
			case Added:
				sb.WriteString(fmt.Sprintf("+ %s\n", formatValue(c.New)))
			case Removed:
				sb.WriteString(fmt.Sprintf("- %s\n", formatValue(c.Old)))
			case Modified:
				oldText, _ := c.Old.(string)
				newText, _ := c.New.(string)
				for _, line := range unifiedLines(oldText, newText, contextLines) {
					sb.WriteString(line + "\n")
				}
			}
		} else {
			sb.WriteString(c.String() + "\n")
		}
	}

	sb.WriteString("\n" + rule)
	return sb.String()
}

// Export returns the change list for programmatic consumers.
func (r *Result) Export() []FieldChange {
	out := make([]FieldChange, len(r.Changes))
	copy(out, r.Changes)
	return out
}

// MarshalJSON exposes the structured form used by the tool server.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"has_changes": r.HasChanges(),
		"summary":     r.Summary(),
		"changes":     r.Export(),
	})
}

// valuesEqual compares two normalized field values via their canonical
// serialization, so differently typed but equivalent numbers (int 512 vs
// float64 512) compare equal.
func valuesEqual(a, b any) (bool, error) {
	ca, err := jsonutil.CanonicalMarshal(a)
	if err != nil {
		return false, err
	}
	cb, err := jsonutil.CanonicalMarshal(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

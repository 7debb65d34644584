package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Format selects an audit trail rendering.
type Format string

const (
	FormatEntries Format = "entries" // structured []Entry, for programmatic use
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
)

// ExportJSON renders entries as an indented JSON array.
func ExportJSON(entries []Entry) (string, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("exporting audit log: %w", err)
	}
	return string(data), nil
}

// ExportCSV renders entries as a flat table. The metadata column is
// re-serialized as an embedded JSON string since CSV has no nesting.
func ExportCSV(entries []Entry) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{"timestamp", "action", "commit_hash", "prompt_hash", "message", "author", "metadata"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("exporting audit log: %w", err)
	}

	for _, e := range entries {
		meta := e.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return "", fmt.Errorf("exporting audit metadata: %w", err)
		}
		row := []string{
			e.Timestamp.Format(time.RFC3339Nano),
			string(e.Action),
			e.CommitHash,
			e.PromptHash,
			e.Message,
			e.Author,
			string(metaJSON),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("exporting audit log: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("exporting audit log: %w", err)
	}
	return sb.String(), nil
}

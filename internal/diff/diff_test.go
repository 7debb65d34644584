package diff

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptvc/internal/prompt"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestCompareIdenticalRecords(t *testing.T) {
	rec := &prompt.Record{System: strPtr("same"), Temperature: floatPtr(0.7)}

	result, err := Compare(rec, rec)
	require.NoError(t, err)

	assert.False(t, result.HasChanges())
	assert.Equal(t, "No changes", result.Summary())
	assert.Equal(t, "No changes detected.", result.Format(3))
}

func TestCompareClassifiesChanges(t *testing.T) {
	a := &prompt.Record{
		System:      strPtr("old system"),
		Temperature: floatPtr(0.5),
		MaxTokens:   intPtr(100),
	}
	b := &prompt.Record{
		System:      strPtr("new system"),
		Temperature: floatPtr(0.5),
		TopP:        floatPtr(0.9),
	}

	result, err := Compare(a, b)
	require.NoError(t, err)

	// Sorted by field name: max_tokens removed, system modified, top_p
	// added. Equal temperature is not materialized.
	require.Len(t, result.Changes, 3)
	assert.Equal(t, FieldChange{Field: "max_tokens", Type: Removed, Old: 100}, result.Changes[0])
	assert.Equal(t, "system", result.Changes[1].Field)
	assert.Equal(t, Modified, result.Changes[1].Type)
	assert.Equal(t, FieldChange{Field: "top_p", Type: Added, New: 0.9}, result.Changes[2])

	assert.Equal(t, "1 added, 1 removed, 1 modified", result.Summary())
}

func TestCompareNumericTypeEquivalence(t *testing.T) {
	// int 512 and float64 512 are the same value after normalization.
	a := &prompt.Record{Extra: map[string]any{"budget": 512}}
	b := &prompt.Record{Extra: map[string]any{"budget": 512.0}}

	result, err := Compare(a, b)
	require.NoError(t, err)
	assert.False(t, result.HasChanges())
}

func TestCompareExtraFields(t *testing.T) {
	a := &prompt.Record{Extra: map[string]any{"owner": "search"}}
	b := &prompt.Record{Extra: map[string]any{"owner": "platform"}}

	result, err := Compare(a, b)
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, Modified, result.Changes[0].Type)
	assert.Equal(t, "search", result.Changes[0].Old)
	assert.Equal(t, "platform", result.Changes[0].New)
}

func TestFormatTextFieldGetsLineDiff(t *testing.T) {
	a := &prompt.Record{System: strPtr("line one\nline two\nline three")}
	b := &prompt.Record{System: strPtr("line one\nline 2\nline three")}

	result, err := Compare(a, b)
	require.NoError(t, err)

	out := result.Format(3)
	assert.Contains(t, out, "PROMPT DIFF")
	assert.Contains(t, out, "Field: system")
	assert.Contains(t, out, "-line two")
	assert.Contains(t, out, "+line 2")
	assert.Contains(t, out, " line one")
}

func TestFormatScalarFieldInline(t *testing.T) {
	a := &prompt.Record{Temperature: floatPtr(0.5)}
	b := &prompt.Record{Temperature: floatPtr(0.9)}

	result, err := Compare(a, b)
	require.NoError(t, err)

	out := result.Format(3)
	assert.Contains(t, out, "~ temperature: 0.5 -> 0.9")
}

func TestFieldChangeString(t *testing.T) {
	assert.Equal(t, "+ top_p: 0.9", FieldChange{Field: "top_p", Type: Added, New: 0.9}.String())
	assert.Equal(t, "- max_tokens: 100", FieldChange{Field: "max_tokens", Type: Removed, Old: 100}.String())
	assert.Equal(t, "~ system: a -> b", FieldChange{Field: "system", Type: Modified, Old: "a", New: "b"}.String())
}

func TestResultMarshalJSON(t *testing.T) {
	a := &prompt.Record{System: strPtr("x")}
	b := &prompt.Record{System: strPtr("y")}

	result, err := Compare(a, b)
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded struct {
		HasChanges bool          `json:"has_changes"`
		Summary    string        `json:"summary"`
		Changes    []FieldChange `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.HasChanges)
	assert.Equal(t, "1 modified", decoded.Summary)
	require.Len(t, decoded.Changes, 1)
}

func TestUnifiedLinesContext(t *testing.T) {
	oldText := strings.Join([]string{"a", "b", "c", "d", "e", "f", "g"}, "\n")
	newText := strings.Join([]string{"a", "b", "c", "D", "e", "f", "g"}, "\n")

	lines := unifiedLines(oldText, newText, 1)

	assert.Contains(t, lines, "-d")
	assert.Contains(t, lines, "+D")
	assert.Contains(t, lines, " c")
	assert.Contains(t, lines, " e")
	// Lines outside the context window are elided.
	assert.NotContains(t, lines, " a")
	assert.NotContains(t, lines, " g")
}

func TestUnifiedLinesIdentical(t *testing.T) {
	lines := unifiedLines("same\ntext", "same\ntext", 3)
	for _, l := range lines {
		assert.False(t, strings.HasPrefix(l, "+"), l)
		assert.False(t, strings.HasPrefix(l, "-"), l)
	}
}

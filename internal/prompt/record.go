// Package prompt defines the entity types of the version control system:
// the immutable prompt record, commits, tags and versions.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"promptvc/internal/jsonutil"
	"promptvc/internal/vcerrors"
)

// DefaultHashLength is the number of hex characters kept from the sha256
// digest for prompt and commit hashes. Truncation trades a small, bounded
// collision probability for shorter user-facing identifiers; deployments
// needing stronger guarantees can widen it via store options.
const DefaultHashLength = 16

// Declared record field names, in wire form.
const (
	FieldSystem           = "system"
	FieldUserTemplate     = "user_template"
	FieldAssistantPrefix  = "assistant_prefix"
	FieldTemperature      = "temperature"
	FieldMaxTokens        = "max_tokens"
	FieldTopP             = "top_p"
	FieldFrequencyPenalty = "frequency_penalty"
	FieldPresencePenalty  = "presence_penalty"
	FieldStopSequences    = "stop_sequences"
)

// TextFields are the free-text fields that get line-level diffs instead of
// opaque before/after values.
var TextFields = map[string]bool{
	FieldSystem:          true,
	FieldUserTemplate:    true,
	FieldAssistantPrefix: true,
}

// Record is the immutable content unit: an LLM prompt with its generation
// parameters. All declared fields are optional; unrecognized fields are
// preserved in Extra so records written by newer tooling round-trip.
type Record struct {
	System           *string
	UserTemplate     *string
	AssistantPrefix  *string
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	StopSequences    []string
	Extra            map[string]any
}

// ToMap returns the normalized form of the record: declared fields with
// non-nil values plus all extra fields, keyed by wire name. This is the
// representation that gets hashed, serialized and diffed.
func (r *Record) ToMap() map[string]any {
	m := make(map[string]any)
	for k, v := range r.Extra {
		m[k] = v
	}
	if r.System != nil {
		m[FieldSystem] = *r.System
	}
	if r.UserTemplate != nil {
		m[FieldUserTemplate] = *r.UserTemplate
	}
	if r.AssistantPrefix != nil {
		m[FieldAssistantPrefix] = *r.AssistantPrefix
	}
	if r.Temperature != nil {
		m[FieldTemperature] = *r.Temperature
	}
	if r.MaxTokens != nil {
		m[FieldMaxTokens] = *r.MaxTokens
	}
	if r.TopP != nil {
		m[FieldTopP] = *r.TopP
	}
	if r.FrequencyPenalty != nil {
		m[FieldFrequencyPenalty] = *r.FrequencyPenalty
	}
	if r.PresencePenalty != nil {
		m[FieldPresencePenalty] = *r.PresencePenalty
	}
	if r.StopSequences != nil {
		seqs := make([]any, len(r.StopSequences))
		for i, s := range r.StopSequences {
			seqs[i] = s
		}
		m[FieldStopSequences] = seqs
	}
	return m
}

// FromMap builds a Record from its normalized map form, coercing numeric
// types (YAML decodes integers as int, JSON as float64) and collecting
// unrecognized keys into Extra. Numeric domains are validated.
func FromMap(m map[string]any) (*Record, error) {
	r := &Record{}
	for key, val := range m {
		if val == nil {
			continue
		}
		var err error
		switch key {
		case FieldSystem:
			r.System, err = toStringPtr(key, val)
		case FieldUserTemplate:
			r.UserTemplate, err = toStringPtr(key, val)
		case FieldAssistantPrefix:
			r.AssistantPrefix, err = toStringPtr(key, val)
		case FieldTemperature:
			r.Temperature, err = toFloatPtr(key, val)
		case FieldMaxTokens:
			r.MaxTokens, err = toIntPtr(key, val)
		case FieldTopP:
			r.TopP, err = toFloatPtr(key, val)
		case FieldFrequencyPenalty:
			r.FrequencyPenalty, err = toFloatPtr(key, val)
		case FieldPresencePenalty:
			r.PresencePenalty, err = toFloatPtr(key, val)
		case FieldStopSequences:
			r.StopSequences, err = toStringSlice(key, val)
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[key] = val
		}
		if err != nil {
			return nil, err
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the declared numeric fields against their domains.
func (r *Record) Validate() error {
	if r.Temperature != nil && (*r.Temperature < 0.0 || *r.Temperature > 2.0) {
		return vcerrors.Validation(FieldTemperature, fmt.Sprintf("must be in [0.0, 2.0], got %v", *r.Temperature))
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return vcerrors.Validation(FieldMaxTokens, fmt.Sprintf("must be > 0, got %d", *r.MaxTokens))
	}
	if r.TopP != nil && (*r.TopP < 0.0 || *r.TopP > 1.0) {
		return vcerrors.Validation(FieldTopP, fmt.Sprintf("must be in [0.0, 1.0], got %v", *r.TopP))
	}
	if r.FrequencyPenalty != nil && (*r.FrequencyPenalty < -2.0 || *r.FrequencyPenalty > 2.0) {
		return vcerrors.Validation(FieldFrequencyPenalty, fmt.Sprintf("must be in [-2.0, 2.0], got %v", *r.FrequencyPenalty))
	}
	if r.PresencePenalty != nil && (*r.PresencePenalty < -2.0 || *r.PresencePenalty > 2.0) {
		return vcerrors.Validation(FieldPresencePenalty, fmt.Sprintf("must be in [-2.0, 2.0], got %v", *r.PresencePenalty))
	}
	return nil
}

// HasContent reports whether the record carries at least one of the two
// semantically required text fields.
func (r *Record) HasContent() bool {
	return r.System != nil || r.UserTemplate != nil
}

// Hash computes the content hash over the canonical (sorted-key,
// nil-fields-omitted) serialization, truncated to DefaultHashLength.
// Two records with identical normalized content always hash identically.
func (r *Record) Hash() (string, error) {
	return r.HashN(DefaultHashLength)
}

// HashN computes the content hash truncated to n hex characters.
func (r *Record) HashN(n int) (string, error) {
	canonical, err := jsonutil.CanonicalMarshal(r.ToMap())
	if err != nil {
		return "", fmt.Errorf("hashing record: %w", err)
	}
	sum := sha256.Sum256(canonical)
	full := hex.EncodeToString(sum[:])
	if n <= 0 || n > len(full) {
		n = len(full)
	}
	return full[:n], nil
}

// MarshalJSON emits the normalized map form.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

// UnmarshalJSON accepts the normalized map form.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	rec, err := FromMap(m)
	if err != nil {
		return err
	}
	*r = *rec
	return nil
}

func toStringPtr(field string, v any) (*string, error) {
	s, ok := v.(string)
	if !ok {
		return nil, vcerrors.Validation(field, fmt.Sprintf("expected string, got %T", v))
	}
	return &s, nil
}

func toFloatPtr(field string, v any) (*float64, error) {
	switch n := v.(type) {
	case float64:
		return &n, nil
	case float32:
		f := float64(n)
		return &f, nil
	case int:
		f := float64(n)
		return &f, nil
	case int64:
		f := float64(n)
		return &f, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, vcerrors.Validation(field, err.Error())
		}
		return &f, nil
	}
	return nil, vcerrors.Validation(field, fmt.Sprintf("expected number, got %T", v))
}

func toIntPtr(field string, v any) (*int, error) {
	switch n := v.(type) {
	case int:
		return &n, nil
	case int64:
		i := int(n)
		return &i, nil
	case float64:
		i := int(n)
		if float64(i) != n {
			return nil, vcerrors.Validation(field, fmt.Sprintf("expected integer, got %v", n))
		}
		return &i, nil
	case json.Number:
		i64, err := n.Int64()
		if err != nil {
			return nil, vcerrors.Validation(field, err.Error())
		}
		i := int(i64)
		return &i, nil
	}
	return nil, vcerrors.Validation(field, fmt.Sprintf("expected integer, got %T", v))
}

func toStringSlice(field string, v any) ([]string, error) {
	switch vals := v.(type) {
	case []string:
		return vals, nil
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			s, ok := item.(string)
			if !ok {
				return nil, vcerrors.Validation(field, fmt.Sprintf("expected string element, got %T", item))
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, vcerrors.Validation(field, fmt.Sprintf("expected string list, got %T", v))
}

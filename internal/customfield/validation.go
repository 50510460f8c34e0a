// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package customfield

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation limits for definitions and values.
const (
	DefaultMaxTextLength = 2000
	MaxFieldNameLength   = 100
	MaxTabNameLength     = 100
)

// dateLayouts are the ISO-8601 forms accepted for Date fields, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

// ValueValidator checks and normalises raw values against a definition.
type ValueValidator struct {
	MaxTextLength int
}

// NewValueValidator returns a validator with the given text limit.
// A non-positive limit selects DefaultMaxTextLength.
func NewValueValidator(maxTextLength int) ValueValidator {
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}
	return ValueValidator{MaxTextLength: maxTextLength}
}

// IsBlank reports whether a raw value carries no content.
func IsBlank(raw string) bool {
	return strings.TrimSpace(raw) == ""
}

// Normalize validates raw against def and returns the canonical stored form.
// Blank input returns ("", nil) for optional fields and a ValidationError for
// required ones.
func (v ValueValidator) Normalize(def *FieldDefinition, raw string) (string, error) {
	if IsBlank(raw) {
		if def.IsRequired {
			return "", &ValidationError{Field: def.FieldName, Message: "is required"}
		}
		return "", nil
	}

	switch def.FieldType {
	case FieldTypeText:
		return v.normalizeText(def, raw)
	case FieldTypeNumber:
		return v.normalizeNumber(def, raw)
	case FieldTypeDate:
		return normalizeDate(def, raw)
	case FieldTypeBoolean:
		return normalizeBoolean(def, raw)
	case FieldTypeSingleChoice:
		return normalizeSingleChoice(def, raw)
	case FieldTypeMultiChoice:
		return normalizeMultiChoice(def, raw)
	default:
		return "", &ValidationError{Field: def.FieldName, Message: "unsupported field type " + def.FieldType.String()}
	}
}

func (v ValueValidator) textLimit() int {
	if v.MaxTextLength <= 0 {
		return DefaultMaxTextLength
	}
	return v.MaxTextLength
}

func (v ValueValidator) normalizeText(def *FieldDefinition, raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", &ValidationError{Field: def.FieldName, Message: "must be valid UTF-8"}
	}
	limit := v.textLimit()
	if utf8.RuneCountInString(raw) > limit {
		return "", &ValidationError{Field: def.FieldName, Message: fmt.Sprintf("exceeds maximum length of %d", limit)}
	}
	return raw, nil
}

// MaxNumberExponent bounds the decimal exponent of Number values. String
// expands the exponent digit by digit, so it must be checked first.
const MaxNumberExponent = 1000

func (v ValueValidator) normalizeNumber(def *FieldDefinition, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if limit := v.textLimit(); len(raw) > limit {
		return "", &ValidationError{Field: def.FieldName, Message: fmt.Sprintf("exceeds maximum length of %d", limit)}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", &ValidationError{Field: def.FieldName, Message: "must be a decimal number"}
	}
	if exp := d.Exponent(); exp > MaxNumberExponent || exp < -MaxNumberExponent {
		return "", &ValidationError{Field: def.FieldName, Message: fmt.Sprintf("exponent must be within ±%d", MaxNumberExponent)}
	}
	return d.String(), nil
}

func normalizeDate(def *FieldDefinition, raw string) (string, error) {
	ts, dateOnly, err := parseDate(strings.TrimSpace(raw))
	if err != nil {
		return "", &ValidationError{Field: def.FieldName, Message: "must be an ISO-8601 date or date-time"}
	}
	if dateOnly {
		return ts.Format(time.DateOnly), nil
	}
	return ts.UTC().Format(time.RFC3339Nano), nil
}

func parseDate(s string) (time.Time, bool, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, layout == time.DateOnly, nil
		}
		lastErr = err
	}
	return time.Time{}, false, lastErr //nolint:wrapcheck // callers convert to ValidationError
}

func normalizeBoolean(def *FieldDefinition, raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1":
		return "true", nil
	case "false", "0":
		return "false", nil
	default:
		return "", &ValidationError{Field: def.FieldName, Message: "must be one of true, false, 1, 0"}
	}
}

func normalizeSingleChoice(def *FieldDefinition, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !def.FieldOptions.Has(raw) {
		return "", &ValidationError{Field: def.FieldName, Message: fmt.Sprintf("%q is not a declared option", raw)}
	}
	return raw, nil
}

// normalizeMultiChoice accepts a JSON array of option values. Tokens are
// re-emitted in option declaration order; an empty array counts as blank.
func normalizeMultiChoice(def *FieldDefinition, raw string) (string, error) {
	tokens, err := DecodeMultiChoice(raw)
	if err != nil {
		return "", &ValidationError{Field: def.FieldName, Message: "must be a JSON array of option values"}
	}
	if len(tokens) == 0 {
		if def.IsRequired {
			return "", &ValidationError{Field: def.FieldName, Message: "is required"}
		}
		return "", nil
	}

	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if !def.FieldOptions.Has(tok) {
			return "", &ValidationError{Field: def.FieldName, Message: fmt.Sprintf("%q is not a declared option", tok)}
		}
		if _, dup := seen[tok]; dup {
			return "", &ValidationError{Field: def.FieldName, Message: fmt.Sprintf("%q is selected more than once", tok)}
		}
		seen[tok] = struct{}{}
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		return def.FieldOptions.IndexOf(tokens[i]) < def.FieldOptions.IndexOf(tokens[j])
	})
	return EncodeMultiChoice(tokens), nil
}

// DecodeMultiChoice parses the MultiChoice wire form: a JSON array of strings.
func DecodeMultiChoice(raw string) ([]string, error) {
	var tokens []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &tokens); err != nil {
		return nil, err //nolint:wrapcheck // callers convert to ValidationError
	}
	return tokens, nil
}

// EncodeMultiChoice renders tokens in the MultiChoice wire form.
func EncodeMultiChoice(tokens []string) string {
	if tokens == nil {
		tokens = []string{}
	}
	b, _ := json.Marshal(tokens) //nolint:errcheck // []string always marshals
	return string(b)
}

// Coerce converts a stored value into its semantic Go type:
// Text and SingleChoice → string, Number → decimal.Decimal,
// Date → time.Time, Boolean → bool, MultiChoice → []string.
func Coerce(def *FieldDefinition, stored string) (any, error) {
	switch def.FieldType {
	case FieldTypeText, FieldTypeSingleChoice:
		return stored, nil
	case FieldTypeNumber:
		d, err := decimal.NewFromString(stored)
		if err != nil {
			return nil, &ValidationError{Field: def.FieldName, Message: "stored value is not a decimal number"}
		}
		return d, nil
	case FieldTypeDate:
		ts, _, err := parseDate(stored)
		if err != nil {
			return nil, &ValidationError{Field: def.FieldName, Message: "stored value is not an ISO-8601 date"}
		}
		return ts, nil
	case FieldTypeBoolean:
		switch stored {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, &ValidationError{Field: def.FieldName, Message: "stored value is not a boolean"}
	case FieldTypeMultiChoice:
		tokens, err := DecodeMultiChoice(stored)
		if err != nil {
			return nil, &ValidationError{Field: def.FieldName, Message: "stored value is not a JSON array"}
		}
		return tokens, nil
	default:
		return nil, &ValidationError{Field: def.FieldName, Message: "unsupported field type " + def.FieldType.String()}
	}
}

// FormatValue renders a value produced by Coerce back into raw form.
// Date-only values (midnight UTC) render as YYYY-MM-DD.
func FormatValue(def *FieldDefinition, typed any) (string, error) {
	switch val := typed.(type) {
	case string:
		return val, nil
	case decimal.Decimal:
		return val.String(), nil
	case time.Time:
		if val.Equal(val.Truncate(24*time.Hour)) && val.Location() == time.UTC {
			return val.Format(time.DateOnly), nil
		}
		return val.UTC().Format(time.RFC3339Nano), nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case []string:
		return EncodeMultiChoice(val), nil
	default:
		return "", &ValidationError{Field: def.FieldName, Message: fmt.Sprintf("cannot format %T", typed)}
	}
}

// ValidateFieldName checks that a field name is non-blank, valid UTF-8, free
// of control characters, and within length.
func ValidateFieldName(name string) error {
	return validateLabel("field_name", name, MaxFieldNameLength)
}

// ValidateTabName applies the field-name rules to a tab name.
func ValidateTabName(name string) error {
	return validateLabel("tab_name", name, MaxTabNameLength)
}

func validateLabel(field, name string, maxLen int) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: field, Message: "cannot be empty"}
	}
	if !utf8.ValidString(name) {
		return &ValidationError{Field: field, Message: "must be valid UTF-8"}
	}
	if name != strings.TrimSpace(name) {
		return &ValidationError{Field: field, Message: "cannot have leading or trailing spaces"}
	}
	if utf8.RuneCountInString(name) > maxLen {
		return &ValidationError{Field: field, Message: fmt.Sprintf("exceeds maximum length of %d", maxLen)}
	}
	if hasControlChars(name) {
		return &ValidationError{Field: field, Message: "cannot contain control characters"}
	}
	return nil
}

// ValidateDefinitionInput runs the storage-free checks CreateDefinition
// applies to in: scope, name, type and options.
func ValidateDefinitionInput(in DefinitionInput) error {
	return validateDefinitionShape(&FieldDefinition{
		Scope:        in.Scope,
		FieldName:    in.FieldName,
		FieldType:    in.FieldType,
		FieldOptions: in.FieldOptions,
	})
}

// validateDefinitionShape checks the definition fields that do not need storage.
func validateDefinitionShape(def *FieldDefinition) error {
	if err := def.Scope.Validate(); err != nil {
		return err
	}
	if err := ValidateFieldName(def.FieldName); err != nil {
		return err
	}
	if !def.FieldType.Valid() {
		return &ValidationError{Field: "field_type", Message: "unknown field type"}
	}
	if def.FieldType.IsChoice() {
		if err := def.FieldOptions.Validate(); err != nil {
			return err
		}
	} else if len(def.FieldOptions) > 0 {
		return &ValidationError{Field: "field_options", Message: "only choice fields accept options"}
	}
	return nil
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

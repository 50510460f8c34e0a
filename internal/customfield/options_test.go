// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package customfield_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/customfields/internal/customfield"
)

func TestFieldOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    customfield.FieldOptions
		wantErr string
	}{
		{name: "valid", opts: customfield.FieldOptions{{Value: "a"}, {Value: "b", Label: "Bee"}}},
		{name: "empty", opts: nil, wantErr: "choice fields require at least one option"},
		{name: "blank value", opts: customfield.FieldOptions{{Value: " "}}, wantErr: "option 0 has an empty value"},
		{name: "duplicate", opts: customfield.FieldOptions{{Value: "a"}, {Value: "a"}}, wantErr: `duplicate option value "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var ve *customfield.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "field_options", ve.Field)
			assert.Equal(t, tt.wantErr, ve.Message)
		})
	}
}

func TestFieldOptions_Lookup(t *testing.T) {
	opts := customfield.FieldOptions{{Value: "S", Label: "Small"}, {Value: "M"}}
	assert.True(t, opts.Has("M"))
	assert.False(t, opts.Has("m"))
	assert.Equal(t, 1, opts.IndexOf("M"))
	assert.Equal(t, -1, opts.IndexOf("L"))
	assert.Equal(t, []string{"S", "M"}, opts.Values())
	assert.Equal(t, "Small", opts[0].DisplayLabel())
	assert.Equal(t, "M", opts[1].DisplayLabel())
}

func TestFieldOptions_Marshal(t *testing.T) {
	b, err := customfield.FieldOptions(nil).Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))

	b, err = customfield.FieldOptions{{Value: "S", Label: "Small"}, {Value: "M"}}.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"value":"S","label":"Small"},{"value":"M"}]`, string(b))
}

func TestParseFieldOptions(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		opts, err := customfield.ParseFieldOptions([]byte(`[{"value":"S","label":"Small"},{"value":"M"}]`))
		require.NoError(t, err)
		assert.Equal(t, customfield.FieldOptions{{Value: "S", Label: "Small"}, {Value: "M"}}, opts)
	})

	t.Run("empty input", func(t *testing.T) {
		opts, err := customfield.ParseFieldOptions([]byte("  "))
		require.NoError(t, err)
		assert.Nil(t, opts)
	})

	for name, data := range map[string]string{
		"malformed":      `[{"value":`,
		"not an array":   `{"value":"S"}`,
		"missing value":  `[{"label":"Small"}]`,
		"empty value":    `[{"value":""}]`,
		"unknown member": `[{"value":"S","colour":"red"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := customfield.ParseFieldOptions([]byte(data))
			var ve *customfield.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "field_options", ve.Field)
		})
	}
}

func TestGenerateFieldOptionsSchema(t *testing.T) {
	data, err := customfield.GenerateFieldOptionsSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, customfield.FieldOptionsSchemaID, schema["$id"])
	assert.Equal(t, "array", schema["type"])
	items, ok := schema["items"].(map[string]any)
	require.True(t, ok, "items should be an inline object schema")
	assert.Contains(t, items["required"], "value")
}

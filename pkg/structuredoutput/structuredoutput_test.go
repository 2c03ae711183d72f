package structuredoutput

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gradeScore struct {
	BinaryScore string `json:"binary_score" description:"Relevance score" enum:"yes,no"`
}

type nestedOutput struct {
	Title    string         `json:"title" description:"Document title"`
	Sections []section      `json:"sections"`
	Notes    *string        `json:"notes,omitempty"`
	Extra    map[string]int `json:"extra,omitempty"`
	hidden   string
}

type section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

func TestNewResponseFormat(t *testing.T) {
	format := NewResponseFormat(gradeScore{})
	assert.Equal(t, "gradeScore", format.Name)
	assert.Equal(t, "object", format.Schema["type"])
	assert.Equal(t, false, format.Schema["additionalProperties"])
	assert.Equal(t, []string{"binary_score"}, format.Schema["required"])

	props := format.Schema["properties"].(map[string]any)
	score := props["binary_score"].(map[string]any)
	assert.Equal(t, "string", score["type"])
	assert.Equal(t, []any{"yes", "no"}, score["enum"])
}

func TestNewResponseFormatNested(t *testing.T) {
	format := NewResponseFormat(&nestedOutput{})
	assert.Equal(t, []string{"title", "sections"}, format.Schema["required"])

	props := format.Schema["properties"].(map[string]any)
	assert.NotContains(t, props, "hidden")

	sections := props["sections"].(map[string]any)
	assert.Equal(t, "array", sections["type"])
	items := sections["items"]
	require.NotNil(t, items)

	extra := props["extra"].(map[string]any)
	assert.Equal(t, "object", extra["type"])
}

func TestUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: `{"binary_score":"yes"}`, want: "yes"},
		{name: "fenced", raw: "```json\n{\"binary_score\":\"no\"}\n```", want: "no"},
		{name: "trailing comma", raw: `{"binary_score":"yes",}`, want: "yes"},
		{name: "single quotes", raw: `{'binary_score':'no'}`, want: "no"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out gradeScore
			require.NoError(t, Unmarshal(tt.raw, &out))
			assert.Equal(t, tt.want, out.BinaryScore)
		})
	}
}

func TestUnmarshalEmpty(t *testing.T) {
	var out gradeScore
	assert.ErrorIs(t, Unmarshal("  ", &out), ErrEmptyOutput)
}

func TestValidate(t *testing.T) {
	format := NewResponseFormat(gradeScore{})

	assert.NoError(t, Validate(format, `{"binary_score":"yes"}`))
	assert.Error(t, Validate(format, `{"binary_score":"maybe"}`))
	assert.Error(t, Validate(format, `{}`))
	assert.NoError(t, Validate(nil, `anything`))
}

func TestDecode(t *testing.T) {
	format := NewResponseFormat(gradeScore{})
	var out gradeScore
	require.NoError(t, Decode(format, "```\n{\"binary_score\": \"no\"}\n```", &out))
	assert.Equal(t, "no", out.BinaryScore)
}

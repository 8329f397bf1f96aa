package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout-agent/internal/domain/entity"
)

func TestDefinitionsFiltersVocabulary(t *testing.T) {
	defs := Definitions(entity.AgentNavigate, []entity.ActionKind{entity.ActionNavigate, entity.ActionClick}, nil)

	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"navigate", "click", "done"}, names)
}

func TestDoneParametersDependOnAgent(t *testing.T) {
	nav := doneParameters(entity.AgentNavigate, nil)
	assert.Contains(t, nav["properties"], "relevant")
	assert.Contains(t, nav["required"], "relevant")

	ext := doneParameters(entity.AgentExtract, nil)
	assert.NotContains(t, ext["properties"], "relevant")
}

func TestSubmitRowsParametersFollowSchema(t *testing.T) {
	params := submitRowsParameters(entity.AgentExtract, entity.Schema{"title": entity.FieldString, "credits": entity.FieldInteger})

	rows := params["properties"].(map[string]interface{})["rows"].(map[string]interface{})
	items := rows["items"].(map[string]interface{})
	assert.Equal(t, []string{"credits", "title"}, items["required"])
	assert.Contains(t, items["properties"], "credits")
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		call    entity.ToolCall
		want    entity.Action
		wantErr string
	}{
		{
			name: "click",
			call: entity.ToolCall{Name: "click", Arguments: `{"index": 0}`},
			want: entity.Action{Kind: entity.ActionClick, Index: 0},
		},
		{
			name: "input text",
			call: entity.ToolCall{Name: "input_text", Arguments: `{"index": 3, "text": "biology"}`},
			want: entity.Action{Kind: entity.ActionInputText, Index: 3, Text: "biology"},
		},
		{
			name: "go back without arguments",
			call: entity.ToolCall{Name: "go_back", Arguments: ""},
			want: entity.Action{Kind: entity.ActionGoBack},
		},
		{
			name: "submit rows",
			call: entity.ToolCall{Name: "submit_rows", Arguments: `{"rows": [{"title": "Algebra"}]}`},
			want: entity.Action{Kind: entity.ActionSubmitRows, Rows: []entity.Row{{"title": "Algebra"}}},
		},
		{
			name:    "missing required argument",
			call:    entity.ToolCall{Name: "navigate", Arguments: `{}`},
			wantErr: "missing argument 'url'",
		},
		{
			name:    "unknown tool",
			call:    entity.ToolCall{Name: "fill", Arguments: `{}`},
			wantErr: "unknown tool",
		},
		{
			name:    "malformed json",
			call:    entity.ToolCall{Name: "click", Arguments: `{index:`},
			wantErr: "invalid arguments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.call)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeDoneKeepsPayload(t *testing.T) {
	got, err := Decode(entity.ToolCall{Name: "done", Arguments: `{"status":"success","relevant":["https://a"]}`})
	require.NoError(t, err)
	assert.Equal(t, entity.ActionDone, got.Kind)
	assert.JSONEq(t, `{"status":"success","relevant":["https://a"]}`, string(got.Payload))
}

package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractContent_Prompt(t *testing.T) {
	got := ExtractContent(TypeUserPromptSubmit, []byte(`{"prompt":"fix the build"}`))
	assert.Equal(t, "fix the build", got)
}

func TestExtractContent_PromptBlocks(t *testing.T) {
	data := `{"prompt":[{"type":"text","text":"first"},{"type":"image","source":{}},{"type":"text","text":"second"}]}`
	got := ExtractContent(TypeUserPromptSubmit, []byte(data))
	assert.Equal(t, "first\nsecond", got)
}

func TestExtractContent_BashPreTool(t *testing.T) {
	data := `{"tool_name":"Bash","tool_input":{"command":"go vet ./...","description":"lint"}}`
	got := ExtractContent(TypePreToolUse, []byte(data))
	assert.Equal(t, "Running: go vet ./... (lint)", got)
}

func TestExtractContent_FileTools(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"tool_name":"Read","tool_input":{"file_path":"/a.go"}}`, "Reading file: /a.go"},
		{`{"tool_name":"Write","tool_input":{"file_path":"/b.go"}}`, "Writing file: /b.go"},
		{`{"tool_name":"Edit","tool_input":{"file_path":"/c.go"}}`, "Editing file: /c.go"},
		{`{"tool_name":"Glob","tool_input":{"pattern":"**/*.go"}}`, "Finding files: **/*.go"},
		{`{"tool_name":"Grep","tool_input":{"pattern":"TODO"}}`, "Searching for: TODO"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractContent(TypePreToolUse, []byte(tt.data)))
	}
}

func TestExtractContent_BashOutputTruncation(t *testing.T) {
	data := `{"tool_name":"Bash","tool_response":{"stdout":"a\nb\nc\nd\ne"}}`
	got := ExtractContent(TypePostToolUse, []byte(data))
	assert.Equal(t, "Output (5 lines): a...", got)
}

func TestExtractContent_BashNoOutput(t *testing.T) {
	data := `{"tool_name":"Bash","tool_response":{"stdout":""}}`
	got := ExtractContent(TypePostToolUse, []byte(data))
	assert.Equal(t, "Command completed (no output)", got)
}

func TestExtractContent_Lifecycle(t *testing.T) {
	assert.Equal(t, "Session started (compact) - Model: m-1",
		ExtractContent(TypeSessionStart, []byte(`{"source":"compact","model":"m-1"}`)))
	assert.Equal(t, "Session started (startup) - Model: unknown",
		ExtractContent(TypeSessionStart, []byte(`{}`)))
	assert.Equal(t, "Assistant finished responding", ExtractContent(TypeStop, []byte(`{}`)))
	assert.Equal(t, "Session ended", ExtractContent(TypeSessionEnd, []byte(`{}`)))
	assert.Equal(t, "Context compaction starting", ExtractContent(TypePreCompact, []byte(`{}`)))
}

func TestExtractContent_SubagentStop(t *testing.T) {
	got := ExtractContent(TypeSubagentStop, []byte(`{"agent_type":"researcher"}`))
	assert.Equal(t, "Agent 'researcher' finished", got)
}

func TestExtractContent_Notification(t *testing.T) {
	assert.Equal(t, "attention needed",
		ExtractContent(TypeNotification, []byte(`{"message":"attention needed"}`)))
	assert.Equal(t, "Notification", ExtractContent(TypeNotification, []byte(`{}`)))
}

func TestExtractContent_ResponsePrefersResponseField(t *testing.T) {
	got := ExtractContent(TypeAssistantResponse, []byte(`{"response":"done","content":"ignored"}`))
	assert.Equal(t, "done", got)
}

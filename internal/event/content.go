package event

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractContent derives the human-readable, searchable text for an event
// from its raw payload. Returns the empty string when the event type carries
// nothing worth indexing.
func ExtractContent(t Type, data []byte) string {
	switch t {
	case TypeUserPromptSubmit:
		return promptText(gjson.GetBytes(data, "prompt"))

	case TypeAssistantResponse:
		d, _ := Decode[ResponseData](Event{Type: t, Data: data})
		if d.Response != "" {
			return d.Response
		}
		return rawString(d.Extra["content"])

	case TypePreToolUse:
		return preToolContent(data)

	case TypePostToolUse:
		return postToolContent(data)

	case TypeSubagentStop:
		d, _ := Decode[SubagentStopData](Event{Type: t, Data: data})
		return fmt.Sprintf("Agent '%s' finished", d.AgentType)

	case TypeSessionStart:
		d, _ := Decode[SessionStartData](Event{Type: t, Data: data})
		source := orDefault(d.Source, "startup")
		model := orDefault(d.Model, "unknown")
		return fmt.Sprintf("Session started (%s) - Model: %s", source, model)

	case TypeSessionEnd:
		return "Session ended"

	case TypeStop:
		return "Assistant finished responding"

	case TypePreCompact:
		return "Context compaction starting"

	case TypeNotification:
		d, _ := Decode[NotificationData](Event{Type: t, Data: data})
		return orDefault(d.Message, "Notification")
	}

	return ""
}

// promptText flattens a prompt field into plain text. Prompts arrive either
// as a string or as an array of content blocks once images are involved.
func promptText(prompt gjson.Result) string {
	switch {
	case prompt.Type == gjson.String:
		return prompt.String()
	case prompt.IsArray():
		var texts []string
		for _, block := range prompt.Array() {
			if block.Type == gjson.String {
				texts = append(texts, block.String())
				continue
			}
			if block.Get("type").String() == "text" {
				texts = append(texts, block.Get("text").String())
			}
		}
		return strings.Join(texts, "\n")
	case prompt.Exists():
		return prompt.String()
	}
	return ""
}

func preToolContent(data []byte) string {
	name := stringOr(gjson.GetBytes(data, "tool_name"), "Unknown")
	input := gjson.GetBytes(data, "tool_input")

	switch name {
	case "Bash":
		cmd := input.Get("command").String()
		if desc := input.Get("description").String(); desc != "" {
			return fmt.Sprintf("Running: %s (%s)", cmd, desc)
		}
		return "Running: " + cmd
	case "Read":
		return "Reading file: " + input.Get("file_path").String()
	case "Write":
		return "Writing file: " + input.Get("file_path").String()
	case "Edit":
		return "Editing file: " + input.Get("file_path").String()
	case "Glob":
		return "Finding files: " + input.Get("pattern").String()
	case "Grep":
		return "Searching for: " + input.Get("pattern").String()
	case "Task":
		desc := input.Get("description").String()
		if desc == "" {
			desc = truncate(input.Get("prompt").String(), 100)
		}
		return "Spawning agent: " + desc
	}
	return fmt.Sprintf("%s: %s", name, truncate(input.String(), 200))
}

func postToolContent(data []byte) string {
	name := stringOr(gjson.GetBytes(data, "tool_name"), "Unknown")
	response := gjson.GetBytes(data, "tool_response")

	switch name {
	case "Bash":
		stdout := response.Get("stdout").String()
		if !response.IsObject() {
			stdout = response.String()
		}
		if stdout == "" {
			return "Command completed (no output)"
		}
		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		if len(lines) > 3 {
			return fmt.Sprintf("Output (%d lines): %s...", len(lines), truncate(lines[0], 100))
		}
		return "Output: " + truncate(stdout, 200)
	case "Read":
		return "File read successfully"
	case "Glob":
		if response.IsObject() {
			return fmt.Sprintf("Found %d files", response.Get("numFiles").Int())
		}
		return "Glob completed"
	case "Grep":
		return "Search completed"
	}
	return name + " completed"
}

func stringOr(r gjson.Result, fallback string) string {
	if s := r.String(); s != "" {
		return s
	}
	return fallback
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// rawString decodes a raw JSON value as a string, empty on anything else.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

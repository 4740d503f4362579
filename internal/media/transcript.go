package media

import (
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/roach88/chronicle/internal/fault"
)

// LastAssistantText returns the final assistant message's first text block
// from an external transcript. Returns empty with no error when the
// transcript holds no assistant text.
func LastAssistantText(transcriptPath string) (string, error) {
	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return "", fault.Wrap(fault.TranscriptUnavailable, "read transcript "+transcriptPath, err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		entry := gjson.Parse(line)
		if entry.Get("type").String() != "assistant" {
			continue
		}
		for _, block := range entry.Get("message.content").Array() {
			if block.Get("type").String() == "text" {
				return block.Get("text").String(), nil
			}
		}
	}
	return "", nil
}

// SubagentSummary describes a subagent run read from its transcript.
type SubagentSummary struct {
	Model    string
	Tools    []string
	Response string
}

// ReadSubagentSummary extracts the model, tool usage and combined text
// response from a subagent transcript. Errors yield an empty summary; the
// rendering that consumes this is best-effort.
func ReadSubagentSummary(transcriptPath string) SubagentSummary {
	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return SubagentSummary{}
	}

	var s SubagentSummary
	var responses []string

	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry := gjson.Parse(line)

		if s.Model == "" {
			s.Model = modelFamily(entry.Get("message.model").String())
		}

		for _, block := range entry.Get("message.content").Array() {
			switch block.Get("type").String() {
			case "tool_use":
				name := block.Get("name").String()
				if name == "" {
					name = "?"
				}
				preview := ""
				input := block.Get("input")
				for _, key := range []string{"file_path", "pattern", "query", "command"} {
					if v := input.Get(key); v.Exists() {
						preview = v.String()
						if len(preview) > 60 {
							preview = preview[:60]
						}
						break
					}
				}
				if preview != "" {
					s.Tools = append(s.Tools, "- "+name+" `"+preview+"`")
				} else {
					s.Tools = append(s.Tools, "- "+name)
				}
			case "text":
				if text := strings.TrimSpace(block.Get("text").String()); text != "" {
					responses = append(responses, text)
				}
			}
		}
	}

	s.Response = strings.Join(responses, "\n\n")
	return s
}

// modelFamily shortens a full model identifier to its family name.
func modelFamily(model string) string {
	for _, family := range []string{"opus", "sonnet", "haiku"} {
		if strings.Contains(model, family) {
			return family
		}
	}
	return ""
}

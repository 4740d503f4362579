// Package render produces the human-readable markdown projection of a
// session log. The document is purely derived state: it is regenerated in
// full from the log on designated lifecycle events and never patched
// incrementally.
package render

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/roach88/chronicle/internal/event"
	"github.com/roach88/chronicle/internal/eventlog"
	"github.com/roach88/chronicle/internal/media"
)

var emojis = map[event.Type]string{
	event.TypeSessionStart:      "💫",
	event.TypeSessionEnd:        "⭐",
	event.TypeUserPromptSubmit:  "🍄",
	event.TypePreToolUse:        "🔨",
	event.TypePostToolUse:       "🏰",
	event.TypeNotification:      "🟡",
	event.TypePreCompact:        "♻️",
	event.TypeStop:              "🟢",
	event.TypeSubagentStop:      "🔵",
	event.TypeAssistantResponse: "🌲",
}

// subagentEntry collects one SubagentStop for the exchange being built.
type subagentEntry struct {
	ts      string
	id      string
	summary media.SubagentSummary
}

// Markdown renders a session's events into the projection document.
func Markdown(events []event.Event, sessionID string) string {
	if len(events) == 0 {
		return ""
	}

	agentSession := events[0].AgentSessionNum
	label := sessionID
	if len(label) > 8 {
		label = label[:8]
	}

	lines := []string{
		fmt.Sprintf("# Session %s:%d", label, agentSession),
		fmt.Sprintf("**ID:** `%s`", sessionID),
		fmt.Sprintf("**Agent Session:** %d (context resets)", agentSession),
		"**Started:** " + events[0].TS.UTC().Format("2006-01-02 15:04:05"),
		"",
		"---",
		"",
	}

	// Exchanges run prompt → tool activity → response.
	var promptTS, promptText string
	havePrompt := false
	toolCounts := map[string]int{}
	var toolOrder []string
	var toolDetails []string
	var subagents []subagentEntry

	for _, e := range events {
		data := gjson.ParseBytes(e.Data)
		ts := e.TS.UTC().Format("15:04:05")

		switch e.Type {
		case event.TypeUserPromptSubmit:
			promptTS, promptText = ts, data.Get("prompt").String()
			havePrompt = true
			toolCounts = map[string]int{}
			toolOrder = nil
			toolDetails = nil
			subagents = nil

		case event.TypePreToolUse:
			if !havePrompt {
				continue
			}
			name := data.Get("tool_name").String()
			if name == "" {
				name = "?"
			}
			// AskUserQuestion renders its Q&A from the PostToolUse side.
			if name == "AskUserQuestion" {
				continue
			}
			if preview := toolPreview(data); preview != "" {
				toolDetails = append(toolDetails, "- "+name+" `"+preview+"`")
			} else {
				toolDetails = append(toolDetails, "- "+name)
			}

		case event.TypePostToolUse:
			if !havePrompt {
				continue
			}
			name := data.Get("tool_name").String()
			if name == "" {
				name = "?"
			}
			if toolCounts[name] == 0 {
				toolOrder = append(toolOrder, name)
			}
			toolCounts[name]++

			if name == "AskUserQuestion" {
				toolDetails = append(toolDetails, askUserDetails(data.Get("tool_response"))...)
			}

		case event.TypeSubagentStop:
			d, _ := event.Decode[event.SubagentStopData](e)
			entry := subagentEntry{ts: ts, id: d.AgentID}
			if entry.id == "" {
				entry.id = "?"
			}
			if d.TranscriptPath != "" {
				entry.summary = media.ReadSubagentSummary(d.TranscriptPath)
			}
			if havePrompt {
				subagents = append(subagents, entry)
			} else {
				lines = append(lines, subagentLines(entry)...)
			}

		case event.TypeAssistantResponse:
			if havePrompt {
				lines = append(lines, "", "---", "", fmt.Sprintf("`%s` 🍄 User", promptTS), quote(promptText), "")

				if len(toolOrder) > 0 {
					total := 0
					var parts []string
					for _, name := range sortedByCount(toolOrder, toolCounts) {
						total += toolCounts[name]
						parts = append(parts, fmt.Sprintf("%s (%d)", name, toolCounts[name]))
					}
					lines = append(lines,
						"<details>",
						fmt.Sprintf("<summary>📦 %d tools: %s</summary>", total, strings.Join(parts, ", ")),
						"",
					)
					lines = append(lines, toolDetails...)
					lines = append(lines, "", "</details>", "")
				}

				for _, sa := range subagents {
					lines = append(lines, subagentLines(sa)...)
				}
				havePrompt = false
			}

			d, _ := event.Decode[event.ResponseData](e)
			response := d.Response
			lines = append(lines,
				"<details>",
				fmt.Sprintf("<summary>`%s` 🌲 Assistant</summary>", ts),
				"",
				quote(response),
				"",
				"</details>",
				"",
			)

		case event.TypeSessionStart, event.TypeSessionEnd, event.TypeNotification, event.TypePreCompact:
			info := data.Get("source").String()
			if info == "" {
				info = data.Get("message").String()
			}
			emoji := emojis[e.Type]
			if emoji == "" {
				emoji = "•"
			}
			lines = append(lines, strings.TrimRight(fmt.Sprintf("`%s` %s %s %s", ts, emoji, e.Type, info), " "))
		}
	}

	return strings.Join(lines, "\n") + "\n"
}

// Write regenerates the projection for one session next to its log.
func Write(log *eventlog.Log, sessionID string) error {
	events, err := log.Read(sessionID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	doc := Markdown(events, sessionID)
	if err := os.WriteFile(log.MarkdownPath(sessionID), []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write markdown for %s: %w", sessionID, err)
	}
	return nil
}

// quote converts text into a markdown blockquote.
func quote(text string) string {
	parts := strings.Split(text, "\n")
	for i, p := range parts {
		parts[i] = "> " + p
	}
	return strings.Join(parts, "\n")
}

// toolPreview pulls a short argument preview from a tool input.
func toolPreview(data gjson.Result) string {
	input := data.Get("tool_input")
	if input.Type == gjson.String {
		return input.String()
	}
	for _, key := range []string{"file_path", "pattern", "query", "command", "prompt"} {
		if v := input.Get(key); v.Exists() {
			val := v.String()
			if len(val) > 80 {
				return val[:80] + "..."
			}
			return val
		}
	}
	return ""
}

// askUserDetails renders answered questions inline in the tool list.
func askUserDetails(response gjson.Result) []string {
	var details []string
	answers := response.Get("answers")
	for _, q := range response.Get("questions").Array() {
		question := q.Get("question").String()
		header := q.Get("header").String()
		answer := answers.Get(question).String()
		if question == "" || answer == "" {
			continue
		}
		label := ""
		if header != "" {
			label = "**" + header + ":** "
		}
		details = append(details, "- 💬 "+label+question)
		for _, line := range strings.Split(answer, "\n") {
			details = append(details, "  > "+line)
		}
	}
	return details
}

func subagentLines(sa subagentEntry) []string {
	modelTag := ""
	if sa.summary.Model != "" {
		modelTag = " (" + sa.summary.Model + ")"
	}
	label := fmt.Sprintf("`%s` 🔵 Subagent %s%s", sa.ts, sa.id, modelTag)

	if len(sa.summary.Tools) == 0 && sa.summary.Response == "" {
		return []string{label}
	}

	lines := []string{"<details>", "<summary>" + label + "</summary>", ""}
	if len(sa.summary.Tools) > 0 {
		lines = append(lines, fmt.Sprintf("**Tools:** %d", len(sa.summary.Tools)))
		lines = append(lines, sa.summary.Tools...)
		lines = append(lines, "")
	}
	if sa.summary.Response != "" {
		resp := sa.summary.Response
		if len(resp) > 500 {
			resp = resp[:500]
		}
		lines = append(lines, "**Response:**", quote(resp), "")
	}
	lines = append(lines, "</details>", "")
	return lines
}

// sortedByCount orders tool names by descending use count, first-seen order
// breaking ties.
func sortedByCount(order []string, counts map[string]int) []string {
	sorted := make([]string, len(order))
	copy(sorted, order)
	sort.SliceStable(sorted, func(i, j int) bool {
		return counts[sorted[i]] > counts[sorted[j]]
	})
	return sorted
}

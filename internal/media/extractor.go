package media

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/roach88/chronicle/internal/event"
	"github.com/roach88/chronicle/internal/eventlog"
	"github.com/roach88/chronicle/internal/fault"
)

// extensionFor maps the allowed media types to their file extensions. A
// type outside this list is substituted with the given default.
var extensionFor = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Extractor stores attachments under one storage root.
type Extractor struct {
	root string
}

func NewExtractor(root string) *Extractor {
	return &Extractor{root: root}
}

// ExtractPrompt scans a prompt field for content blocks. Image blocks are
// decoded, content-addressed and written to the session's images directory;
// text blocks are concatenated into the returned text. Decode failures skip
// the offending block and are reported in errs; extraction never aborts.
//
// A plain string prompt is returned as-is with no images.
func (x *Extractor) ExtractPrompt(prompt []byte, sessionID, eventID string) (text string, refs []event.ImageRef, errs []error) {
	p := gjson.ParseBytes(prompt)
	if p.Type == gjson.String {
		return p.String(), nil, nil
	}
	if !p.IsArray() {
		return p.String(), nil, nil
	}

	var texts []string
	for idx, block := range p.Array() {
		if block.Type == gjson.String {
			texts = append(texts, block.String())
			continue
		}
		if !block.IsObject() {
			texts = append(texts, block.String())
			continue
		}

		switch block.Get("type").String() {
		case "text":
			texts = append(texts, block.Get("text").String())
		case "image":
			ref, err := x.saveImageBlock(block, sessionID, eventID, idx, "image/jpeg")
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ref != nil {
				refs = append(refs, *ref)
			}
		}
	}
	return strings.Join(texts, "\n"), refs, errs
}

// saveImageBlock handles one image content block. Returns nil with no error
// for blocks carrying no data.
func (x *Extractor) saveImageBlock(block gjson.Result, sessionID, ownerID string, idx int, defaultType string) (*event.ImageRef, error) {
	source := block.Get("source")

	switch source.Get("type").String() {
	case "base64":
		mediaType := source.Get("media_type").String()
		if _, ok := extensionFor[mediaType]; !ok {
			mediaType = defaultType
		}
		data := source.Get("data").String()
		if data == "" {
			return nil, nil
		}

		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fault.Wrap(fault.MediaDecode, fmt.Sprintf("decode image block %d of %s", idx, ownerID), err)
		}

		sum := sha256.Sum256(raw)
		hash := hex.EncodeToString(sum[:])[:12]
		filename := fmt.Sprintf("%s_%s_%d%s", hash, ownerID, idx, extensionFor[mediaType])

		dir := filepath.Join(x.root, "images", sessionID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fault.Wrap(fault.MediaDecode, "create images dir", err)
		}

		full := filepath.Join(dir, filename)
		// Content-addressed: an existing file already holds these bytes.
		if _, err := os.Stat(full); os.IsNotExist(err) {
			if err := os.WriteFile(full, raw, 0o644); err != nil {
				return nil, fault.Wrap(fault.MediaDecode, "write image "+filename, err)
			}
		}

		return &event.ImageRef{
			Type:      "image",
			Path:      path.Join("images", sessionID, filename),
			MediaType: mediaType,
			Size:      len(raw),
			Index:     idx,
		}, nil

	case "url":
		url := source.Get("url").String()
		if url == "" {
			return nil, nil
		}
		mediaType := source.Get("media_type").String()
		if mediaType == "" {
			mediaType = "image/jpeg"
		}
		return &event.ImageRef{
			Type:      "image",
			URL:       url,
			MediaType: mediaType,
			Index:     idx,
		}, nil
	}
	return nil, nil
}

// ExtractTranscript scans every user message in an external transcript for
// image blocks. The host excludes image data from its envelopes, so the
// transcript is the only place the bytes exist; extraction runs once the
// conversation turn is complete.
//
// Returns a mapping from the 0-based user-message ordinal to that message's
// image references. Filenames carry the ordinal for later correlation.
func (x *Extractor) ExtractTranscript(transcriptPath, sessionID string) (map[int][]event.ImageRef, []error) {
	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return nil, []error{fault.Wrap(fault.TranscriptUnavailable, "read transcript "+transcriptPath, err)}
	}

	byMsg := map[int][]event.ImageRef{}
	var errs []error
	userIdx := 0

	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry := gjson.Parse(line)
		if entry.Get("type").String() != "user" {
			continue
		}

		content := entry.Get("message.content")
		if !content.IsArray() {
			userIdx++
			continue
		}

		var refs []event.ImageRef
		for blockIdx, block := range content.Array() {
			if !block.IsObject() || block.Get("type").String() != "image" {
				continue
			}
			owner := fmt.Sprintf("user%d", userIdx)
			ref, err := x.saveTranscriptBlock(block, sessionID, owner, blockIdx)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ref != nil {
				refs = append(refs, *ref)
			}
		}
		if len(refs) > 0 {
			byMsg[userIdx] = refs
		}
		userIdx++
	}
	return byMsg, errs
}

// saveTranscriptBlock mirrors saveImageBlock but uses the transcript
// filename convention user{msgIdx}_{hash}_{blockIdx}.{ext} and defaults the
// media type to PNG, matching how hosts encode pasted screenshots.
func (x *Extractor) saveTranscriptBlock(block gjson.Result, sessionID, owner string, idx int) (*event.ImageRef, error) {
	source := block.Get("source")

	switch source.Get("type").String() {
	case "base64":
		mediaType := source.Get("media_type").String()
		if _, ok := extensionFor[mediaType]; !ok {
			mediaType = "image/png"
		}
		data := source.Get("data").String()
		if data == "" {
			return nil, nil
		}

		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fault.Wrap(fault.MediaDecode, fmt.Sprintf("decode transcript image %s block %d", owner, idx), err)
		}

		sum := sha256.Sum256(raw)
		hash := hex.EncodeToString(sum[:])[:12]
		filename := fmt.Sprintf("%s_%s_%d%s", owner, hash, idx, extensionFor[mediaType])

		dir := filepath.Join(x.root, "images", sessionID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fault.Wrap(fault.MediaDecode, "create images dir", err)
		}
		full := filepath.Join(dir, filename)
		if _, err := os.Stat(full); os.IsNotExist(err) {
			if err := os.WriteFile(full, raw, 0o644); err != nil {
				return nil, fault.Wrap(fault.MediaDecode, "write image "+filename, err)
			}
		}

		return &event.ImageRef{
			Type:      "image",
			Path:      path.Join("images", sessionID, filename),
			MediaType: mediaType,
			Size:      len(raw),
			Index:     idx,
		}, nil

	case "url":
		url := source.Get("url").String()
		if url == "" {
			return nil, nil
		}
		mediaType := source.Get("media_type").String()
		if mediaType == "" {
			mediaType = "image/jpeg"
		}
		return &event.ImageRef{
			Type:      "image",
			URL:       url,
			MediaType: mediaType,
			Index:     idx,
		}, nil
	}
	return nil, nil
}

// Correlate patches transcript image references onto the session's logged
// prompt events: the Nth user-message ordinal maps to the Nth
// UserPromptSubmit line. An event's images field is set only if currently
// absent, so running correlation twice changes nothing. Untouched lines are
// preserved byte for byte.
func Correlate(log *eventlog.Log, sessionID string, byMsg map[int][]event.ImageRef) (bool, error) {
	if len(byMsg) == 0 {
		return false, nil
	}

	lines, err := log.ReadLines(sessionID)
	if err != nil {
		return false, err
	}
	if lines == nil {
		return false, nil
	}

	var promptLines []int
	for i, line := range lines {
		if gjson.Get(line, "type").String() == string(event.TypeUserPromptSubmit) {
			promptLines = append(promptLines, i)
		}
	}

	updated := false
	for msgIdx, refs := range byMsg {
		if msgIdx >= len(promptLines) {
			continue
		}
		i := promptLines[msgIdx]
		if gjson.Get(lines[i], "images").Exists() {
			continue
		}
		patched, err := sjson.Set(lines[i], "images", refs)
		if err != nil {
			return updated, fmt.Errorf("patch images on line %d: %w", i, err)
		}
		lines[i] = patched
		updated = true
	}

	if !updated {
		return false, nil
	}
	return true, log.WriteLines(sessionID, lines)
}

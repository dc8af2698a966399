package stream

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/log"
)

// doneSentinel is emitted by some servers before closing the stream.
// It is not JSON and must be skipped, never parsed.
const doneSentinel = "[DONE]"

// framePayload covers every known wire shape of a data frame. Pointer
// fields distinguish an absent key from an empty value.
type framePayload struct {
	Type    string  `json:"type"`
	Delta   *string `json:"delta"`
	Text    *string `json:"text"`
	Content *string `json:"content"`
}

// ParseRecord maps one SSE record to at most one stream event.
//
// Lines carrying the "data:" prefix form the payload; blank payloads and
// the [DONE] sentinel are skipped. Unknown event types are ignored for
// forward compatibility, and malformed JSON is logged and dropped rather
// than failing the stream.
func ParseRecord(record string) (Event, bool) {
	payload := dataPayload(record)
	if payload == "" || payload == doneSentinel {
		return nil, false
	}

	var frame framePayload
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		log.Debug("skipping malformed stream frame", "error", err)
		return nil, false
	}

	switch frame.Type {
	case "text-delta":
		if frame.Delta != nil {
			return TextChunk{Content: *frame.Delta}, true
		}
		// Legacy servers used "text" instead of "delta".
		if frame.Text != nil {
			return TextChunk{Content: *frame.Text}, true
		}
	case "reasoning-delta":
		if frame.Delta != nil {
			return Thinking{Content: *frame.Delta}, true
		}
	case "":
		// Legacy untyped shape carrying the whole increment in "content".
		if frame.Content != nil {
			return TextChunk{Content: *frame.Content}, true
		}
	}

	return nil, false
}

// dataPayload extracts and joins the data lines of a record
func dataPayload(record string) string {
	var parts []string
	for _, line := range strings.Split(record, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		parts = append(parts, strings.TrimSpace(line[len("data:"):]))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// OutboundMode selects the shape of frames sent to the backend.
type OutboundMode string

const (
	// OutboundStructured sends {"location": ..., "message": ...}.
	OutboundStructured OutboundMode = "structured"
	// OutboundText sends the bare message text as the whole frame.
	OutboundText OutboundMode = "text"
)

// ParseOutboundMode validates a configured mode name. Empty means structured.
func ParseOutboundMode(s string) (OutboundMode, error) {
	switch OutboundMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutboundStructured:
		return OutboundStructured, nil
	case OutboundText:
		return OutboundText, nil
	}
	return "", fmt.Errorf("unknown outbound mode %q (want %q or %q)", s, OutboundStructured, OutboundText)
}

// Outbound is the structured upstream message.
type Outbound struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// EncodeOutbound renders a user message as a frame payload.
func EncodeOutbound(mode OutboundMode, location, text string) (string, error) {
	switch mode {
	case OutboundText:
		return text, nil
	case OutboundStructured, "":
		data, err := json.Marshal(Outbound{Location: location, Message: text})
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", fmt.Errorf("unknown outbound mode %q", mode)
}

// DecodeOutbound is the backend-side reader. It accepts a structured object,
// a JSON string, or raw text; anything that is not one of the JSON shapes is
// taken verbatim.
func DecodeOutbound(raw []byte) Outbound {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var out struct {
			Location *string `json:"location"`
			Message  *string `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &out); err == nil && out.Message != nil {
			o := Outbound{Message: *out.Message}
			if out.Location != nil {
				o.Location = *out.Location
			}
			return o
		}
	}

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return Outbound{Message: s}
		}
	}

	return Outbound{Message: string(raw)}
}

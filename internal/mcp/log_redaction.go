package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// imagePayloadFields hold base64 image data that must never reach the logs.
var imagePayloadFields = map[string]struct{}{
	"image_base64": {},
	"imageUrl":     {},
	"image_url":    {},
}

// redactMCPBody redacts image payloads from MCP JSON bodies.
func redactMCPBody(raw string) string {
	if raw == "" {
		return raw
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return raw
	}
	out, err := json.Marshal(redactMCPValue(payload))
	if err != nil {
		return raw
	}
	return string(out)
}

// redactMCPValue recursively redacts nested payloads.
func redactMCPValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return redactMCPMap(v)
	case []any:
		result := make([]any, 0, len(v))
		for _, item := range v {
			result = append(result, redactMCPValue(item))
		}
		return result
	case string:
		if strings.HasPrefix(v, "data:") {
			return redactedImage(v)
		}
		return v
	default:
		return value
	}
}

func redactMCPMap(input map[string]any) map[string]any {
	output := make(map[string]any, len(input))
	for key, value := range input {
		if _, ok := imagePayloadFields[key]; ok {
			if s, ok := value.(string); ok && s != "" {
				output[key] = redactedImage(s)
				continue
			}
		}
		output[key] = redactMCPValue(value)
	}
	return output
}

func redactedImage(raw string) string {
	return fmt.Sprintf("[redacted image, %d bytes]", len(raw))
}

// redactHookPayload renders a redacted JSON string for hook logging.
func redactHookPayload(payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return redactMCPBody(string(data))
}

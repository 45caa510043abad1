package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
)

const defaultAPIBase = "https://api.openai.com"

// ResponsesHelper wraps OpenAI-compatible Responses API calls.
// It is safe for concurrent use.
type ResponsesHelper struct {
	apiBase    string
	httpClient *http.Client
}

// NewResponsesHelper creates a Responses API helper with safe defaults.
func NewResponsesHelper(apiBase string, timeout time.Duration, httpClient *http.Client) *ResponsesHelper {
	trimmedBase := strings.TrimSpace(apiBase)
	if trimmedBase == "" {
		trimmedBase = defaultAPIBase
	}

	return &ResponsesHelper{
		apiBase:    strings.TrimRight(trimmedBase, "/"),
		httpClient: defaultHTTPClient(httpClient, timeout),
	}
}

// CreateText sends a Responses API request and returns aggregated text output.
func (h *ResponsesHelper) CreateText(ctx context.Context, apiKey string, req ResponseRequest) (string, error) {
	if h == nil {
		return "", errors.New("responses helper is nil")
	}
	if err := req.validate(apiKey); err != nil {
		return "", err
	}

	payload := map[string]any{
		"model": req.Model,
		"input": req.Input,
	}
	if strings.TrimSpace(req.Instructions) != "" {
		payload["instructions"] = req.Instructions
	}
	if strings.TrimSpace(req.PromptCacheKey) != "" {
		payload["prompt_cache_key"] = req.PromptCacheKey
	}
	if req.MaxOutputTokens > 0 {
		payload["max_output_tokens"] = req.MaxOutputTokens
	}
	if req.Temperature >= 0 {
		payload["temperature"] = req.Temperature
	}
	if req.JSONOutput {
		payload["text"] = map[string]any{
			"format": map[string]any{"type": "json_object"},
		}
	}

	var decoded responsesCreateResponse
	if err := postJSON(ctx, h.httpClient, h.apiBase+"/v1/responses",
		map[string]string{"Authorization": "Bearer " + apiKey}, payload, &decoded); err != nil {
		return "", errors.Wrap(err, "call responses endpoint")
	}

	text := strings.TrimSpace(decoded.OutputText)
	if text != "" {
		return text, nil
	}

	text = strings.TrimSpace(decoded.AggregatedText())
	if text == "" {
		return "", errors.New("responses output text is empty")
	}

	return text, nil
}

type responsesCreateResponse struct {
	OutputText string                `json:"output_text"`
	Output     []responsesOutputItem `json:"output"`
}

func (r responsesCreateResponse) AggregatedText() string {
	parts := make([]string, 0, len(r.Output))
	for _, item := range r.Output {
		for _, content := range item.Content {
			if strings.EqualFold(content.Type, "output_text") || strings.EqualFold(content.Type, "text") {
				if text := strings.TrimSpace(content.Text); text != "" {
					parts = append(parts, text)
				}
			}
		}
	}

	return strings.Join(parts, "\n")
}

type responsesOutputItem struct {
	Type    string                   `json:"type"`
	Content []responsesOutputContent `json:"content"`
}

type responsesOutputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

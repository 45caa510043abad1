package llm

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
)

const (
	defaultGeminiAPIBase = "https://generativelanguage.googleapis.com"
	// DefaultGeminiModel is used by callers that select the gemini provider without a model.
	DefaultGeminiModel = "gemini-2.5-flash"
)

// GeminiHelper wraps the Gemini generateContent API.
// It is safe for concurrent use.
type GeminiHelper struct {
	apiBase    string
	httpClient *http.Client
}

// NewGeminiHelper creates a generateContent helper.
func NewGeminiHelper(apiBase string, timeout time.Duration, httpClient *http.Client) *GeminiHelper {
	base := strings.TrimSpace(apiBase)
	if base == "" {
		base = defaultGeminiAPIBase
	}

	return &GeminiHelper{
		apiBase:    strings.TrimRight(base, "/"),
		httpClient: defaultHTTPClient(httpClient, timeout),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// text joins the parts of the first candidate.
func (r geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}

	parts := make([]string, 0, len(r.Candidates[0].Content.Parts))
	for _, p := range r.Candidates[0].Content.Parts {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// CreateText calls models/{model}:generateContent and returns the candidate text.
// PromptCacheKey has no Gemini counterpart and is ignored.
func (h *GeminiHelper) CreateText(ctx context.Context, apiKey string, req ResponseRequest) (string, error) {
	if h == nil {
		return "", errors.New("gemini helper is nil")
	}
	if err := req.validate(apiKey); err != nil {
		return "", err
	}

	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Input}}}},
	}
	if strings.TrimSpace(req.Instructions) != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.Instructions}}}
	}

	cfg := &geminiGenerationConfig{MaxOutputTokens: req.MaxOutputTokens}
	if req.JSONOutput {
		cfg.ResponseMimeType = "application/json"
	}
	if req.Temperature >= 0 {
		temperature := req.Temperature
		cfg.Temperature = &temperature
	}
	payload.GenerationConfig = cfg

	endpoint := h.apiBase + "/v1beta/models/" + url.PathEscape(strings.TrimSpace(req.Model)) + ":generateContent"
	var decoded geminiResponse
	if err := postJSON(ctx, h.httpClient, endpoint,
		map[string]string{"x-goog-api-key": apiKey}, payload, &decoded); err != nil {
		return "", errors.Wrap(err, "call generateContent endpoint")
	}

	if reason := decoded.PromptFeedback.BlockReason; reason != "" {
		return "", errors.Errorf("prompt blocked: %s", reason)
	}

	text := decoded.text()
	if text == "" {
		return "", errors.New("generateContent output text is empty")
	}
	return text, nil
}

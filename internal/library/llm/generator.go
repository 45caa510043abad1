// Package llm calls hosted text-generation APIs over plain HTTP.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
)

// Supported providers for settings.llm.provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	defaultTimeout = 8 * time.Second
	// errorBodyLimit bounds how much of a failed response is kept in the error.
	errorBodyLimit = 512
)

// ResponseRequest describes one text generation request.
type ResponseRequest struct {
	Model           string
	Instructions    string
	Input           string
	PromptCacheKey  string
	MaxOutputTokens int
	Temperature     float64
	// JSONOutput asks the model for a single JSON object.
	JSONOutput bool
}

func (r ResponseRequest) validate(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("missing api key")
	}
	if strings.TrimSpace(r.Model) == "" {
		return errors.New("missing model")
	}
	if strings.TrimSpace(r.Input) == "" {
		return errors.New("missing input")
	}
	return nil
}

// Generator produces text for a request. Both helpers implement it.
type Generator interface {
	CreateText(ctx context.Context, apiKey string, req ResponseRequest) (string, error)
}

var (
	_ Generator = (*ResponsesHelper)(nil)
	_ Generator = (*GeminiHelper)(nil)
)

// NewGenerator returns the helper for provider, empty provider means openai.
func NewGenerator(provider, apiBase string, timeout time.Duration) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderOpenAI:
		return NewResponsesHelper(apiBase, timeout, nil), nil
	case ProviderGemini:
		return NewGeminiHelper(apiBase, timeout, nil), nil
	default:
		return nil, errors.Errorf("unknown llm provider %q", provider)
	}
}

func defaultHTTPClient(httpClient *http.Client, timeout time.Duration) *http.Client {
	if httpClient != nil {
		return httpClient
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// postJSON posts payload as JSON and decodes a 2xx JSON reply into out.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return errors.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

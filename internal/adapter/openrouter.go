package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/expbench/expbench/internal/result"
)

// OpenRouter calls the OpenRouter chat completions API.
type OpenRouter struct {
	baseURL string
	apiKey  string
	referer string
	title   string
	retry   RetryConfig
	client  *http.Client
}

// NewOpenRouter reads OPENROUTER_* from the environment. The API key is
// required; base URL, referer and title are optional.
func NewOpenRouter(retry RetryConfig) (*OpenRouter, error) {
	key := os.Getenv("OPENROUTER_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is not set")
	}
	return &OpenRouter{
		baseURL: envDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		apiKey:  key,
		referer: os.Getenv("OPENROUTER_HTTP_REFERER"),
		title:   os.Getenv("OPENROUTER_X_TITLE"),
		retry:   retry,
		client:  &http.Client{},
	}, nil
}

func (a *OpenRouter) Complete(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	payload := map[string]any{
		"model": req.Model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"temperature": req.Temperature,
		"max_tokens":  req.MaxOutputTokens,
		"stream":      false,
	}
	body, _ := json.Marshal(payload)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.apiKey)
	if a.referer != "" {
		header.Set("HTTP-Referer", a.referer)
	}
	if a.title != "" {
		header.Set("X-Title", a.title)
	}

	status, respBody, err := postWith429Retries(ctx, a.client, a.baseURL+"/chat/completions", header, body, a.retry)
	if err != nil {
		return nil, fmt.Errorf("openrouter request: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("openrouter returned %d: %s", status, snippet(respBody))
	}

	var data map[string]any
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("decoding openrouter response: %w", err)
	}

	text := ""
	if choices, ok := data["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				text, _ = msg["content"].(string)
			}
		}
	}

	raw := usageMap(data)
	var derived *result.TokenUsage
	if len(raw) > 0 {
		derived = &result.TokenUsage{
			InputTokens:  tokenCount(raw, "prompt_tokens"),
			OutputTokens: tokenCount(raw, "completion_tokens"),
			TotalTokens:  tokenCount(raw, "total_tokens"),
		}
	}
	return &Result{Text: text, RawUsage: raw, UsageDerived: derived}, nil
}

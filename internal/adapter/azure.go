package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/expbench/expbench/internal/result"
)

// AzureOpenAI calls the Azure OpenAI Responses API.
type AzureOpenAI struct {
	endpoint   string
	apiKey     string
	apiVersion string
	deployment string
	retry      RetryConfig
	client     *http.Client
}

// NewAzureOpenAI reads AZURE_OPENAI_* from the environment. Endpoint, key
// and API version are required. AZURE_OPENAI_DEPLOYMENT is the fallback
// deployment when a model spec leaves the model part empty.
func NewAzureOpenAI(retry RetryConfig) (*AzureOpenAI, error) {
	a := &AzureOpenAI{
		endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		apiKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		apiVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
		deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		retry:      retry,
		client:     &http.Client{},
	}
	if a.endpoint == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT is not set")
	}
	if a.apiKey == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_API_KEY is not set")
	}
	if a.apiVersion == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_API_VERSION is not set")
	}
	return a, nil
}

func (a *AzureOpenAI) Complete(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	deployment := req.Model
	if deployment == "" {
		deployment = a.deployment
	}
	if deployment == "" {
		return nil, fmt.Errorf("azure deployment is not set: pass azureopenai:<deployment> or set AZURE_OPENAI_DEPLOYMENT")
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/responses?api-version=%s",
		strings.TrimRight(a.endpoint, "/"), deployment, a.apiVersion)
	payload := map[string]any{
		"input": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"max_output_tokens": req.MaxOutputTokens,
		"temperature":       req.Temperature,
		"stream":            false,
	}
	body, _ := json.Marshal(payload)

	header := http.Header{}
	header.Set("api-key", a.apiKey)

	status, respBody, err := postWith429Retries(ctx, a.client, url, header, body, a.retry)
	if err != nil {
		return nil, fmt.Errorf("azure request: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("azure returned %d: %s", status, snippet(respBody))
	}

	var data map[string]any
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("decoding azure response: %w", err)
	}

	raw := usageMap(data)
	var derived *result.TokenUsage
	if len(raw) > 0 {
		derived = &result.TokenUsage{
			InputTokens:  tokenCount(raw, "input_tokens"),
			OutputTokens: tokenCount(raw, "output_tokens"),
			TotalTokens:  tokenCount(raw, "total_tokens"),
		}
	}
	return &Result{Text: responsesText(data), RawUsage: raw, UsageDerived: derived}, nil
}

// responsesText tolerates the shape drift seen across Responses API
// versions: a flat output_text, a list of output items whose content
// entries carry text, or a chat-completions-style choices fallback.
func responsesText(data map[string]any) string {
	if s, ok := data["output_text"].(string); ok {
		return s
	}
	if output, ok := data["output"].([]any); ok {
		var sb strings.Builder
		for _, rawItem := range output {
			item, ok := rawItem.(map[string]any)
			if !ok {
				continue
			}
			if content, ok := item["content"].([]any); ok {
				for _, rawEntry := range content {
					entry, ok := rawEntry.(map[string]any)
					if !ok {
						continue
					}
					typ, _ := entry["type"].(string)
					if typ != "output_text" && typ != "text" {
						continue
					}
					if s, ok := entry["text"].(string); ok {
						sb.WriteString(s)
					}
				}
			}
			if s, ok := item["text"].(string); ok {
				sb.WriteString(s)
			}
		}
		return sb.String()
	}
	if choices, ok := data["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if s, ok := msg["content"].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/expbench/expbench/internal/result"
)

// Ollama calls a local Ollama server's generate API. It needs no
// credentials and, talking to a local daemon, no 429 retry loop.
type Ollama struct {
	baseURL string
	client  *http.Client
}

func NewOllama() *Ollama {
	return &Ollama{
		baseURL: envDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		client:  &http.Client{},
	}
}

func (a *Ollama) Complete(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	// The generate endpoint has no separate system slot; fold it into
	// the prompt.
	promptText := strings.TrimSpace(req.System+"\n\n"+req.User) + "\n"
	payload := map[string]any{
		"model":  req.Model,
		"prompt": promptText,
		"stream": false,
		"options": map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxOutputTokens,
		},
	}
	body, _ := json.Marshal(payload)

	status, _, respBody, err := postJSON(ctx, a.client, a.baseURL+"/api/generate", nil, body)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("ollama returned %d: %s", status, snippet(respBody))
	}

	var data map[string]any
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", err)
	}

	text, _ := data["response"].(string)
	// Ollama reports eval counts at the top level, not under a usage
	// object. Keep both keys in raw usage even when absent so records
	// stay comparable across models, and leave the total unset since
	// the server never reports one.
	raw := map[string]any{
		"prompt_eval_count": data["prompt_eval_count"],
		"eval_count":        data["eval_count"],
	}
	derived := &result.TokenUsage{
		InputTokens:  tokenCount(data, "prompt_eval_count"),
		OutputTokens: tokenCount(data, "eval_count"),
	}
	return &Result{Text: text, RawUsage: raw, UsageDerived: derived}, nil
}

package adapter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/expbench/expbench/internal/model"
	"github.com/expbench/expbench/internal/result"
)

// Request is one completion call against a provider.
type Request struct {
	Model           string
	System          string
	User            string
	MaxOutputTokens int
	Temperature     float64
	Timeout         time.Duration
}

// Result carries a provider response reduced to what trials record.
type Result struct {
	Text         string
	RawUsage     map[string]any
	UsageDerived *result.TokenUsage
}

// Adapter is a provider backend able to serve one-shot completions.
// Implementations are safe for concurrent use.
type Adapter interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}

// ForProviders builds one adapter per distinct provider in specs. Missing
// credentials surface here, before any trial starts, instead of failing
// trial by trial mid-run.
func ForProviders(specs []model.Spec, retry RetryConfig) (map[model.Provider]Adapter, error) {
	adapters := make(map[model.Provider]Adapter)
	for _, ms := range specs {
		if _, ok := adapters[ms.Provider]; ok {
			continue
		}
		var (
			a   Adapter
			err error
		)
		switch ms.Provider {
		case model.OpenRouter:
			a, err = NewOpenRouter(retry)
		case model.AzureOpenAI:
			a, err = NewAzureOpenAI(retry)
		case model.Ollama:
			a = NewOllama()
		default:
			err = fmt.Errorf("no adapter for provider %q", ms.Provider)
		}
		if err != nil {
			return nil, err
		}
		adapters[ms.Provider] = a
	}
	return adapters, nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func usageMap(data map[string]any) map[string]any {
	u, _ := data["usage"].(map[string]any)
	return u
}

func tokenCount(m map[string]any, key string) *int64 {
	if v, ok := m[key].(float64); ok {
		n := int64(v)
		return &n
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	runes := []rune(s)
	if len(runes) > 500 {
		return string(runes[:500]) + "..."
	}
	return s
}

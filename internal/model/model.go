package model

import (
	"fmt"
	"strings"
)

// Provider identifies a supported LLM backend.
type Provider string

const (
	OpenRouter  Provider = "openrouter"
	AzureOpenAI Provider = "azureopenai"
	Ollama      Provider = "ollama"
)

// Spec is a parsed provider:model selector.
type Spec struct {
	Provider Provider
	Model    string
}

// ParseSpec parses a "provider:model" selector, splitting at the first
// colon so model names may themselves contain colons (ollama tags). The
// provider is case-insensitive; the model name keeps its case.
func ParseSpec(text string) (Spec, error) {
	idx := strings.Index(text, ":")
	if idx < 0 {
		return Spec{}, fmt.Errorf("invalid model spec %q: expected provider:model", text)
	}
	provider := Provider(strings.ToLower(strings.TrimSpace(text[:idx])))
	switch provider {
	case OpenRouter, AzureOpenAI, Ollama:
	default:
		return Spec{}, fmt.Errorf("unknown provider %q in model spec %q (allowed: azureopenai, ollama, openrouter)", string(provider), text)
	}
	name := strings.TrimSpace(text[idx+1:])
	if name == "" {
		return Spec{}, fmt.Errorf("empty model in model spec %q", text)
	}
	return Spec{Provider: provider, Model: name}, nil
}

// String renders the canonical provider:model form.
func (s Spec) String() string {
	return string(s.Provider) + ":" + s.Model
}

// Key returns the model key used as the aggregation scope for usage and
// cost. It is identical to the canonical spec string.
func (s Spec) Key() string {
	return s.String()
}

package model_test

import (
	"strings"
	"testing"

	"github.com/expbench/expbench/internal/model"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		name         string
		in           string
		wantProvider model.Provider
		wantModel    string
	}{
		{"openrouter slash model", "openrouter:openai/gpt-4o-mini", model.OpenRouter, "openai/gpt-4o-mini"},
		{"provider lowercased", "OPENROUTER:openai/gpt-4o", model.OpenRouter, "openai/gpt-4o"},
		{"model case preserved", "azureopenai:GPT-4o", model.AzureOpenAI, "GPT-4o"},
		{"first colon split", "ollama:granite4:3b", model.Ollama, "granite4:3b"},
		{"whitespace trimmed", " ollama : llama3.1:8b ", model.Ollama, "llama3.1:8b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := model.ParseSpec(tt.in)
			if err != nil {
				t.Fatalf("ParseSpec(%q) returned error: %v", tt.in, err)
			}
			if got.Provider != tt.wantProvider {
				t.Errorf("provider = %q, want %q", got.Provider, tt.wantProvider)
			}
			if got.Model != tt.wantModel {
				t.Errorf("model = %q, want %q", got.Model, tt.wantModel)
			}
		})
	}
}

func TestParseSpecErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantSub string
	}{
		{"missing colon", "gpt-4o", "expected provider:model"},
		{"unknown provider", "foo:bar", "unknown provider"},
		{"empty provider", ":gpt-4o", "unknown provider"},
		{"empty model", "openrouter:", "empty model"},
		{"whitespace model", "openrouter:   ", "empty model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.ParseSpec(tt.in)
			if err == nil {
				t.Fatalf("ParseSpec(%q) succeeded, want error", tt.in)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestSpecStringAndKey(t *testing.T) {
	s, err := model.ParseSpec("openrouter:openai/gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := s.String(), "openrouter:openai/gpt-4o"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if s.Key() != s.String() {
		t.Errorf("Key() = %q, want it to equal String() %q", s.Key(), s.String())
	}
}

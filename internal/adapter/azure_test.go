package adapter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/expbench/expbench/internal/adapter"
)

func setAzureEnv(t *testing.T, endpoint string) {
	t.Helper()
	t.Setenv("AZURE_OPENAI_ENDPOINT", endpoint)
	t.Setenv("AZURE_OPENAI_API_KEY", "az-key")
	t.Setenv("AZURE_OPENAI_API_VERSION", "2024-10-21")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "")
}

func TestAzureOpenAIComplete(t *testing.T) {
	var gotPath, gotVersion, gotKey string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")
		gotKey = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decoding request payload: %v", err)
		}
		w.Write([]byte(`{
			"output": [
				{"content": [{"type": "output_text", "text": "part one"}]},
				{"content": [{"type": "text", "text": " part two"}]}
			],
			"usage": {"input_tokens": 7, "output_tokens": 3, "total_tokens": 10}
		}`))
	}))
	defer srv.Close()

	setAzureEnv(t, srv.URL)

	a, err := adapter.NewAzureOpenAI(adapter.DefaultRetryConfig())
	if err != nil {
		t.Fatalf("NewAzureOpenAI: %v", err)
	}
	res, err := a.Complete(context.Background(), adapter.Request{
		Model:           "gpt-4o",
		System:          "system text",
		User:            "user text",
		MaxOutputTokens: 512,
		Temperature:     0.0,
		Timeout:         5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if res.Text != "part one part two" {
		t.Errorf("text = %q, want %q", res.Text, "part one part two")
	}
	if gotPath != "/openai/deployments/gpt-4o/responses" {
		t.Errorf("path = %q, want /openai/deployments/gpt-4o/responses", gotPath)
	}
	if gotVersion != "2024-10-21" {
		t.Errorf("api-version = %q, want 2024-10-21", gotVersion)
	}
	if gotKey != "az-key" {
		t.Errorf("api-key header = %q, want az-key", gotKey)
	}
	if got, _ := gotPayload["max_output_tokens"].(float64); got != 512 {
		t.Errorf("max_output_tokens = %v, want 512", gotPayload["max_output_tokens"])
	}
	input, _ := gotPayload["input"].([]any)
	if len(input) != 2 {
		t.Fatalf("got %d input messages, want 2", len(input))
	}
	second, _ := input[1].(map[string]any)
	if second["role"] != "user" || second["content"] != "user text" {
		t.Errorf("second input message = %v, want user role with user text", second)
	}

	if res.UsageDerived == nil {
		t.Fatal("usage derived is nil")
	}
	if got := *res.UsageDerived.InputTokens; got != 7 {
		t.Errorf("input tokens = %d, want 7", got)
	}
	if got := *res.UsageDerived.TotalTokens; got != 10 {
		t.Errorf("total tokens = %d, want 10", got)
	}
}

func TestAzureOpenAIFallsBackToEnvDeployment(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"output_text": "ok"}`))
	}))
	defer srv.Close()

	setAzureEnv(t, srv.URL)
	t.Setenv("AZURE_OPENAI_DEPLOYMENT", "prod-gpt4")

	a, err := adapter.NewAzureOpenAI(adapter.DefaultRetryConfig())
	if err != nil {
		t.Fatalf("NewAzureOpenAI: %v", err)
	}
	if _, err := a.Complete(context.Background(), adapter.Request{Timeout: 5 * time.Second}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.Contains(gotPath, "/deployments/prod-gpt4/") {
		t.Errorf("path = %q, want the env deployment in it", gotPath)
	}
}

func TestAzureOpenAINoDeploymentAnywhere(t *testing.T) {
	setAzureEnv(t, "https://example.openai.azure.com")

	a, err := adapter.NewAzureOpenAI(adapter.DefaultRetryConfig())
	if err != nil {
		t.Fatalf("NewAzureOpenAI: %v", err)
	}
	if _, err := a.Complete(context.Background(), adapter.Request{Timeout: time.Second}); err == nil {
		t.Fatal("Complete succeeded without a deployment")
	}
}

func TestNewAzureOpenAIMissingEnv(t *testing.T) {
	tests := []struct {
		name  string
		clear string
	}{
		{"endpoint", "AZURE_OPENAI_ENDPOINT"},
		{"api key", "AZURE_OPENAI_API_KEY"},
		{"api version", "AZURE_OPENAI_API_VERSION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setAzureEnv(t, "https://example.openai.azure.com")
			t.Setenv(tt.clear, "")
			if _, err := adapter.NewAzureOpenAI(adapter.DefaultRetryConfig()); err == nil {
				t.Fatalf("NewAzureOpenAI succeeded without %s", tt.clear)
			}
		})
	}
}

func TestAzureResponseShapes(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	setAzureEnv(t, srv.URL)

	a, err := adapter.NewAzureOpenAI(adapter.DefaultRetryConfig())
	if err != nil {
		t.Fatalf("NewAzureOpenAI: %v", err)
	}

	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"flat output_text", `{"output_text": "flat"}`, "flat"},
		{
			"output items with typed entries",
			`{"output": [{"content": [{"type": "output_text", "text": "a"}, {"type": "reasoning", "text": "skip"}]}, {"text": "b"}]}`,
			"ab",
		},
		{"choices fallback", `{"choices": [{"message": {"content": "fb"}}]}`, "fb"},
		{"empty object", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body = tt.response
			res, err := a.Complete(context.Background(), adapter.Request{Model: "d", Timeout: 5 * time.Second})
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if res.Text != tt.want {
				t.Errorf("text = %q, want %q", res.Text, tt.want)
			}
		})
	}
}

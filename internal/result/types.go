package result

import "time"

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrorKind classifies which stage of a trial failed. Configuration errors
// are fatal before any trial starts and never appear in records.
type ErrorKind string

const (
	KindProviderError    ErrorKind = "provider_error"
	KindParseError       ErrorKind = "parse_error"
	KindTimeout          ErrorKind = "timeout"
	KindRuntimeError     ErrorKind = "runtime_error"
	KindOutputParseError ErrorKind = "output_parse_error"
	KindRunnerError      ErrorKind = "runner_error"
)

type TrialRecord struct {
	RunID        string    `json:"run_id"`
	TimestampUTC time.Time `json:"timestamp_utc"`

	BenchmarkID string `json:"benchmark_id"`
	Years       int    `json:"years"`
	RunIndex    int    `json:"run_index"`

	Provider  string `json:"provider"`
	ModelSpec string `json:"model_spec"`
	ModelKey  string `json:"model_key"`

	PromptRenderedSHA256 string `json:"prompt_rendered_sha256"`

	Status       string    `json:"status"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`

	TTLTMS *float64 `json:"ttlt_ms"`
	ExecMS *float64 `json:"exec_ms"`

	PassedA   *bool `json:"passed_a"`
	PassedB   *bool `json:"passed_b"`
	PassedAll *bool `json:"passed_all"`

	OutputA *string `json:"output_a"`
	OutputB *string `json:"output_b"`

	ExpectedA string `json:"expected_a"`
	ExpectedB string `json:"expected_b"`

	// Token usage is scoped to model_key; values from different model keys
	// are not comparable.
	RawUsage     map[string]any `json:"raw_usage"`
	UsageDerived *TokenUsage    `json:"usage_derived"`

	ResponseTextLen  *int `json:"response_text_len"`
	ExtractedCodeLen *int `json:"extracted_code_len"`
}

// TokenUsage normalizes provider accounting. Counters a provider does not
// report stay nil.
type TokenUsage struct {
	InputTokens  *int64 `json:"input_tokens"`
	OutputTokens *int64 `json:"output_tokens"`
	TotalTokens  *int64 `json:"total_tokens"`
}

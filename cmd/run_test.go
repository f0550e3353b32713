package cmd

import (
	"reflect"
	"testing"

	"github.com/expbench/expbench/internal/config"
)

func baseBenchmark() *config.Benchmark {
	return &config.Benchmark{
		ID:     "bench",
		Models: config.StringList{"ollama:llama3"},
		Years:  config.IntList{1, 5},
		Settings: config.Settings{
			RunsPerSetting:  2,
			Warmup:          1,
			TimeoutS:        120,
			MaxOutputTokens: 1024,
			Temperature:     0,
			Concurrency:     4,
		},
		Sandbox: config.SandboxSettings{
			Backend:     config.SandboxProcess,
			Interpreter: []string{"python"},
			Image:       "python:3.12-slim",
		},
	}
}

func TestApplyOverridesLeavesUntouchedFlagsAlone(t *testing.T) {
	cmd := newRunCmd()
	bench := baseBenchmark()

	if err := applyOverrides(cmd, bench); err != nil {
		t.Fatalf("applyOverrides: %v", err)
	}
	if bench.Settings.Concurrency != 4 {
		t.Errorf("concurrency = %d, want the file's 4 despite the flag default of 1", bench.Settings.Concurrency)
	}
	if bench.Settings.RunsPerSetting != 2 || bench.Settings.Warmup != 1 {
		t.Errorf("settings changed without any flag set: %+v", bench.Settings)
	}
	if len(bench.Models) != 1 || len(bench.Years) != 2 {
		t.Errorf("models/years changed without any flag set: %v %v", bench.Models, bench.Years)
	}
}

func TestApplyOverridesChangedFlags(t *testing.T) {
	cmd := newRunCmd()
	for name, value := range map[string]string{
		"models":            "openrouter:openai/gpt-4o-mini, ollama:llama3",
		"years":             "1,10,25",
		"runs-per-setting":  "5",
		"timeout-s":         "30.5",
		"max-output-tokens": "2048",
		"sandbox":           "docker",
	} {
		if err := cmd.Flags().Set(name, value); err != nil {
			t.Fatalf("setting --%s: %v", name, err)
		}
	}
	bench := baseBenchmark()

	if err := applyOverrides(cmd, bench); err != nil {
		t.Fatalf("applyOverrides: %v", err)
	}
	wantModels := config.StringList{"openrouter:openai/gpt-4o-mini", "ollama:llama3"}
	if !reflect.DeepEqual(bench.Models, wantModels) {
		t.Errorf("models = %v, want %v", bench.Models, wantModels)
	}
	if !reflect.DeepEqual(bench.Years, config.IntList{1, 10, 25}) {
		t.Errorf("years = %v, want [1 10 25]", bench.Years)
	}
	if bench.Settings.RunsPerSetting != 5 {
		t.Errorf("runs per setting = %d, want 5", bench.Settings.RunsPerSetting)
	}
	if bench.Settings.TimeoutS != 30.5 {
		t.Errorf("timeout = %v, want 30.5", bench.Settings.TimeoutS)
	}
	if bench.Settings.MaxOutputTokens != 2048 {
		t.Errorf("max output tokens = %d, want 2048", bench.Settings.MaxOutputTokens)
	}
	if bench.Sandbox.Backend != config.SandboxDocker {
		t.Errorf("sandbox backend = %q, want docker", bench.Sandbox.Backend)
	}
	if bench.Settings.Concurrency != 4 {
		t.Errorf("concurrency = %d, want untouched 4", bench.Settings.Concurrency)
	}
}

func TestApplyOverridesFlagSetToDefaultStillWins(t *testing.T) {
	cmd := newRunCmd()
	if err := cmd.Flags().Set("concurrency", "1"); err != nil {
		t.Fatal(err)
	}
	bench := baseBenchmark()

	if err := applyOverrides(cmd, bench); err != nil {
		t.Fatalf("applyOverrides: %v", err)
	}
	if bench.Settings.Concurrency != 1 {
		t.Errorf("concurrency = %d, want 1: an explicitly set flag overrides even at its default value", bench.Settings.Concurrency)
	}
}

func TestApplyOverridesRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		flag  string
		value string
	}{
		{"zero runs per setting", "runs-per-setting", "0"},
		{"negative warmup", "warmup", "-1"},
		{"zero concurrency", "concurrency", "0"},
		{"unknown sandbox backend", "sandbox", "vm"},
		{"non-integer years", "years", "1,five"},
		{"empty models", "models", " , "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRunCmd()
			if err := cmd.Flags().Set(tt.flag, tt.value); err != nil {
				t.Fatalf("setting --%s: %v", tt.flag, err)
			}
			if err := applyOverrides(cmd, baseBenchmark()); err == nil {
				t.Errorf("applyOverrides accepted --%s=%q", tt.flag, tt.value)
			}
		})
	}
}

func TestParseSpecs(t *testing.T) {
	specs, err := parseSpecs([]string{"ollama:llama3", "openrouter:openai/gpt-4o-mini"})
	if err != nil {
		t.Fatalf("parseSpecs: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}
	if specs[1].Key() != "openrouter:openai/gpt-4o-mini" {
		t.Errorf("key = %q", specs[1].Key())
	}

	if _, err := parseSpecs([]string{"ollama:llama3", "no-colon"}); err == nil {
		t.Error("parseSpecs accepted a spec without a colon")
	}
}

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ", []string{"a", "b"}},
		{"a,,b,", []string{"a", "b"}},
		{"", nil},
		{" , ", nil},
	}
	for _, tt := range tests {
		if got := splitCSV(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitCSV(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseYears(t *testing.T) {
	got, err := parseYears(" 1, 5 ,25")
	if err != nil {
		t.Fatalf("parseYears: %v", err)
	}
	if !reflect.DeepEqual(got, []int{1, 5, 25}) {
		t.Errorf("parseYears = %v, want [1 5 25]", got)
	}

	for _, bad := range []string{"", "1,x", "2.5"} {
		if _, err := parseYears(bad); err == nil {
			t.Errorf("parseYears(%q) accepted bad input", bad)
		}
	}
}

func TestJoinInts(t *testing.T) {
	if got := joinInts([]int{1, 5, 10}); got != "1, 5, 10" {
		t.Errorf("joinInts = %q", got)
	}
	if got := joinInts(nil); got != "" {
		t.Errorf("joinInts(nil) = %q, want empty", got)
	}
}

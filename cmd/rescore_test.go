package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/expbench/expbench/internal/result"
)

func writeBenchmarkFixture(t *testing.T, dir string) string {
	t.Helper()
	files := map[string]string{
		"template.txt": "You have {years} years of experience.\n\n{problem_statement}\n",
		"statement.md": "Sum the numbers.",
		"input.txt":    "1 2 3\n",
	}
	for name, text := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	benchYAML := `id: rescore-bench
prompt_template: template.txt
models: ["ollama:fake"]
years: [3]
problem:
  statement_path: statement.md
  input_path: input.txt
expected:
  parts:
    a:
      value: "26"
    b:
      value: "77"
`
	path := filepath.Join(dir, "bench.yaml")
	if err := os.WriteFile(path, []byte(benchYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRescoreUpdatesGradedRecords(t *testing.T) {
	dir := t.TempDir()
	benchPath := writeBenchmarkFixture(t, dir)
	outRoot := filepath.Join(dir, "out")

	// Graded as a mismatch under a stale expected_a of 25; the stored
	// stdout actually matches the corrected benchmark.
	graded := filepath.Join(outRoot, "run1", "ollama", "ollama_fake", "years_3", "run_000")
	mismatch := &result.TrialRecord{
		RunID:        "run1",
		TimestampUTC: time.Now().UTC(),
		BenchmarkID:  "rescore-bench",
		Years:        3,
		Provider:     "ollama",
		ModelSpec:    "ollama:fake",
		ModelKey:     "ollama:fake",
		Status:       result.StatusError,
		PassedA:      boolPtr(false),
		PassedB:      boolPtr(true),
		PassedAll:    boolPtr(false),
		ExpectedA:    "25",
		ExpectedB:    "77",
	}
	if err := result.WriteRecordJSON(graded, mismatch); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(graded, "exec_stdout.txt"), []byte("26\n77\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	failed := filepath.Join(outRoot, "run1", "ollama", "ollama_fake", "years_3", "run_001")
	provErr := &result.TrialRecord{
		RunID:        "run1",
		BenchmarkID:  "rescore-bench",
		Years:        3,
		RunIndex:     1,
		Provider:     "ollama",
		ModelSpec:    "ollama:fake",
		ModelKey:     "ollama:fake",
		Status:       result.StatusError,
		ErrorKind:    result.KindProviderError,
		ErrorMessage: "boom",
		ExpectedA:    "25",
		ExpectedB:    "77",
	}
	if err := result.WriteRecordJSON(failed, provErr); err != nil {
		t.Fatal(err)
	}

	cmd := newRescoreCmd()
	if err := cmd.Flags().Set("dir", outRoot); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("benchmark", benchPath); err != nil {
		t.Fatal(err)
	}
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("rescore: %v", err)
	}

	rec, err := result.ReadRecordJSON(filepath.Join(graded, "record.json"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != result.StatusOK {
		t.Errorf("status = %q, want ok after the expected value fix", rec.Status)
	}
	if rec.PassedAll == nil || !*rec.PassedAll {
		t.Error("passed_all should be true after rescoring")
	}
	if rec.ExpectedA != "26" {
		t.Errorf("expected_a = %q, want the benchmark's 26", rec.ExpectedA)
	}
	if rec.OutputA == nil || *rec.OutputA != "26" {
		t.Errorf("output_a = %v, want 26", rec.OutputA)
	}

	untouched, err := result.ReadRecordJSON(filepath.Join(failed, "record.json"))
	if err != nil {
		t.Fatal(err)
	}
	if untouched.ErrorKind != result.KindProviderError || untouched.ErrorMessage != "boom" {
		t.Errorf("provider_error record was rewritten: %+v", untouched)
	}
}

func TestRescoreNoRecords(t *testing.T) {
	dir := t.TempDir()
	benchPath := writeBenchmarkFixture(t, dir)
	empty := filepath.Join(dir, "empty")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}

	cmd := newRescoreCmd()
	if err := cmd.Flags().Set("dir", empty); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("benchmark", benchPath); err != nil {
		t.Fatal(err)
	}
	if err := cmd.RunE(cmd, nil); err == nil {
		t.Error("rescore of a directory without records should fail")
	}
}

func TestGradedFromStdout(t *testing.T) {
	tests := []struct {
		name   string
		status string
		kind   result.ErrorKind
		want   bool
	}{
		{"ok", result.StatusOK, "", true},
		{"graded mismatch", result.StatusError, "", true},
		{"output parse error", result.StatusError, result.KindOutputParseError, true},
		{"timeout", result.StatusError, result.KindTimeout, false},
		{"runtime error", result.StatusError, result.KindRuntimeError, false},
		{"provider error", result.StatusError, result.KindProviderError, false},
		{"parse error", result.StatusError, result.KindParseError, false},
		{"runner error", result.StatusError, result.KindRunnerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &result.TrialRecord{Status: tt.status, ErrorKind: tt.kind}
			if got := gradedFromStdout(rec); got != tt.want {
				t.Errorf("gradedFromStdout(%s, %s) = %v, want %v", tt.status, tt.kind, got, tt.want)
			}
		})
	}
}

func TestVerdict(t *testing.T) {
	if got := verdict(result.StatusOK, ""); got != "ok" {
		t.Errorf("verdict = %q, want ok", got)
	}
	if got := verdict(result.StatusError, result.KindTimeout); got != "error/timeout" {
		t.Errorf("verdict = %q, want error/timeout", got)
	}
}

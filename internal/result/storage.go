package result

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// NewRunID renders a UTC run identifier with microsecond precision,
// e.g. 20251212_142657_123456Z.
func NewRunID(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("%s_%06dZ", now.Format("20060102_150405"), now.Nanosecond()/1000)
}

// CreateRunRoot makes the per-run artifact root under outputDir and points
// a "latest" symlink at it. The symlink is best effort.
func CreateRunRoot(outputDir, runID string) (string, error) {
	runRoot, err := filepath.Abs(filepath.Join(outputDir, runID))
	if err != nil {
		return "", fmt.Errorf("resolving run root: %w", err)
	}
	if err := os.MkdirAll(runRoot, 0o755); err != nil {
		return "", fmt.Errorf("creating run root: %w", err)
	}
	latest := filepath.Join(outputDir, "latest")
	os.Remove(latest)
	os.Symlink(runRoot, latest)
	return runRoot, nil
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SafePathComponent maps an arbitrary model key to a filesystem-safe path
// segment. Unsafe runes become underscores; leading and trailing dots and
// underscores are trimmed; an empty result falls back to "model".
func SafePathComponent(text string) string {
	safe := unsafePathChars.ReplaceAllString(text, "_")
	safe = strings.Trim(safe, "._")
	if safe == "" {
		return "model"
	}
	return safe
}

func TrialDir(runRoot, provider, modelKey string, years, runIndex int) string {
	return filepath.Join(
		runRoot,
		provider,
		SafePathComponent(modelKey),
		fmt.Sprintf("years_%d", years),
		fmt.Sprintf("run_%03d", runIndex),
	)
}

// Artifacts holds the per-trial text files written next to record.json.
// Nil fields are stages the trial never reached and are skipped.
type Artifacts struct {
	PromptSystem string
	PromptUser   string
	Completion   *string
	Code         *string
	ExecStdout   *string
	ExecStderr   *string
}

func WriteTrialArtifacts(trialDir string, rec *TrialRecord, art *Artifacts) error {
	if err := os.MkdirAll(trialDir, 0o755); err != nil {
		return fmt.Errorf("creating trial dir: %w", err)
	}
	files := []struct {
		name string
		text *string
	}{
		{"prompt_system.txt", &art.PromptSystem},
		{"prompt_user.txt", &art.PromptUser},
		{"completion.txt", art.Completion},
		{"solution.py", art.Code},
		{"exec_stdout.txt", art.ExecStdout},
		{"exec_stderr.txt", art.ExecStderr},
	}
	for _, f := range files {
		if f.text == nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(trialDir, f.name), []byte(*f.text), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}
	return WriteRecordJSON(trialDir, rec)
}

func WriteRecordJSON(trialDir string, rec *TrialRecord) error {
	if err := os.MkdirAll(trialDir, 0o755); err != nil {
		return fmt.Errorf("creating trial dir: %w", err)
	}
	data, err := marshalRecord(rec, true)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	return os.WriteFile(filepath.Join(trialDir, "record.json"), data, 0o644)
}

func ReadRecordJSON(path string) (*TrialRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}
	var rec TrialRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}
	return &rec, nil
}

// AppendJSONL appends one compact JSON line per record. Callers must funnel
// all writes for a given file through one goroutine; the engine appends only
// at its fan-in point.
func AppendJSONL(path string, records []*TrialRecord) (int, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("creating output dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	n := 0
	for _, rec := range records {
		data, err := marshalRecord(rec, false)
		if err != nil {
			return n, fmt.Errorf("marshaling record: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			return n, fmt.Errorf("appending to %s: %w", path, err)
		}
		n++
	}
	return n, nil
}

// ReadJSONL streams the records back, skipping blank lines.
func ReadJSONL(path string) ([]*TrialRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []*TrialRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec TrialRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("parsing %s line %d: %w", path, lineNo, err)
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, nil
}

// marshalRecord keeps angle brackets and non-ASCII text readable in the
// stored JSON; prompts and completions routinely contain both.
func marshalRecord(rec *TrialRecord, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Benchmark is a loaded benchmark definition. Referenced files are read
// eagerly so trials never touch the config tree while running.
type Benchmark struct {
	ID             string         `yaml:"id"`
	PromptTemplate string         `yaml:"prompt_template"`
	Years          IntList        `yaml:"years"`
	Models         StringList     `yaml:"models"`
	Defaults       Defaults       `yaml:"defaults"`
	Problem        Problem        `yaml:"problem"`
	Expected       Expected       `yaml:"expected"`
	RetryOpts      RetryOptions   `yaml:"retry"`
	SandboxOpts    SandboxOptions `yaml:"sandbox"`

	Dir           string          `yaml:"-"`
	Settings      Settings        `yaml:"-"`
	Retry         RetrySettings   `yaml:"-"`
	Sandbox       SandboxSettings `yaml:"-"`
	TemplateText  string          `yaml:"-"`
	StatementText string          `yaml:"-"`
	InputPayload  string          `yaml:"-"`
	ExpectedA     string          `yaml:"-"`
	ExpectedB     string          `yaml:"-"`
}

// Defaults mirrors the YAML defaults block. Pointer fields distinguish an
// omitted key from an explicit zero (warmup: 0 is meaningful).
type Defaults struct {
	RunsPerSetting  *int     `yaml:"runs_per_setting"`
	Warmup          *int     `yaml:"warmup"`
	TimeoutS        *float64 `yaml:"timeout_s"`
	MaxOutputTokens *int     `yaml:"max_output_tokens"`
	Temperature     *float64 `yaml:"temperature"`
	Concurrency     *int     `yaml:"concurrency"`
}

// Settings are the effective run parameters after defaults are applied.
type Settings struct {
	RunsPerSetting  int
	Warmup          int
	TimeoutS        float64
	MaxOutputTokens int
	Temperature     float64
	Concurrency     int
}

type Problem struct {
	StatementPath string `yaml:"statement_path"`
	InputPath     string `yaml:"input_path"`
}

type Expected struct {
	Parts ExpectedParts `yaml:"parts"`
}

type ExpectedParts struct {
	A ExpectedPart `yaml:"a"`
	B ExpectedPart `yaml:"b"`
}

type ExpectedPart struct {
	Value Scalar `yaml:"value"`
}

type RetryOptions struct {
	MaxAttempts *int     `yaml:"max_attempts"`
	BaseDelayS  *float64 `yaml:"base_delay_s"`
	MaxDelayS   *float64 `yaml:"max_delay_s"`
}

type RetrySettings struct {
	MaxAttempts int
	BaseDelayS  float64
	MaxDelayS   float64
}

type SandboxOptions struct {
	Backend     string     `yaml:"backend"`
	Interpreter StringList `yaml:"interpreter"`
	Image       string     `yaml:"image"`
}

type SandboxSettings struct {
	Backend     string
	Interpreter []string
	Image       string
}

const (
	SandboxProcess = "process"
	SandboxDocker  = "docker"
)

func Load(path string) (*Benchmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading benchmark %s: %w", path, err)
	}
	var b Benchmark
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing benchmark %s: %w", path, err)
	}
	if err := validate(&b, path); err != nil {
		return nil, fmt.Errorf("invalid benchmark %s: %w", path, err)
	}
	return &b, nil
}

func validate(b *Benchmark, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	b.Dir = filepath.Dir(abs)

	if b.ID == "" {
		base := filepath.Base(path)
		b.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if len(b.Years) == 0 {
		b.Years = IntList{1, 5, 10, 25}
	}

	b.Settings = Settings{
		RunsPerSetting:  intOr(b.Defaults.RunsPerSetting, 2),
		Warmup:          intOr(b.Defaults.Warmup, 1),
		TimeoutS:        floatOr(b.Defaults.TimeoutS, 120.0),
		MaxOutputTokens: intOr(b.Defaults.MaxOutputTokens, 1024),
		Temperature:     floatOr(b.Defaults.Temperature, 0.0),
		Concurrency:     intOr(b.Defaults.Concurrency, 1),
	}
	if b.Settings.RunsPerSetting < 1 {
		return fmt.Errorf("defaults.runs_per_setting must be at least 1")
	}
	if b.Settings.Warmup < 0 {
		return fmt.Errorf("defaults.warmup must not be negative")
	}
	if b.Settings.Concurrency < 1 {
		return fmt.Errorf("defaults.concurrency must be at least 1")
	}

	b.Retry = RetrySettings{
		MaxAttempts: intOr(b.RetryOpts.MaxAttempts, 5),
		BaseDelayS:  floatOr(b.RetryOpts.BaseDelayS, 1.0),
		MaxDelayS:   floatOr(b.RetryOpts.MaxDelayS, 30.0),
	}
	if b.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}

	b.Sandbox = SandboxSettings{
		Backend:     b.SandboxOpts.Backend,
		Interpreter: b.SandboxOpts.Interpreter,
		Image:       b.SandboxOpts.Image,
	}
	if b.Sandbox.Backend == "" {
		b.Sandbox.Backend = SandboxProcess
	}
	if b.Sandbox.Backend != SandboxProcess && b.Sandbox.Backend != SandboxDocker {
		return fmt.Errorf("sandbox.backend must be %q or %q", SandboxProcess, SandboxDocker)
	}
	if len(b.Sandbox.Interpreter) == 0 {
		b.Sandbox.Interpreter = []string{"python"}
	}
	if b.Sandbox.Image == "" {
		b.Sandbox.Image = "python:3.12-slim"
	}

	if b.PromptTemplate == "" {
		return fmt.Errorf("prompt_template is required")
	}
	b.TemplateText, err = readRel(b.Dir, b.PromptTemplate, "prompt_template")
	if err != nil {
		return err
	}
	if b.Problem.StatementPath == "" {
		return fmt.Errorf("problem.statement_path is required")
	}
	b.StatementText, err = readRel(b.Dir, b.Problem.StatementPath, "problem.statement_path")
	if err != nil {
		return err
	}
	if b.Problem.InputPath == "" {
		return fmt.Errorf("problem.input_path is required")
	}
	b.InputPayload, err = readRel(b.Dir, b.Problem.InputPath, "problem.input_path")
	if err != nil {
		return err
	}

	b.ExpectedA = strings.TrimSpace(string(b.Expected.Parts.A.Value))
	b.ExpectedB = strings.TrimSpace(string(b.Expected.Parts.B.Value))
	if b.ExpectedA == "" || b.ExpectedB == "" {
		return fmt.Errorf("expected.parts.a.value and expected.parts.b.value are required")
	}
	return nil
}

func readRel(dir, rel, field string) (string, error) {
	p := rel
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, rel)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("%s not found: %s", field, p)
	}
	return string(data), nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// IntList accepts either a YAML sequence or a comma-separated string.
type IntList []int

func (l *IntList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var raw any
		if err := value.Decode(&raw); err != nil {
			return err
		}
		switch v := raw.(type) {
		case int:
			*l = IntList{v}
		case string:
			out := IntList{}
			for _, item := range strings.Split(v, ",") {
				item = strings.TrimSpace(item)
				if item == "" {
					continue
				}
				n, err := strconv.Atoi(item)
				if err != nil {
					return fmt.Errorf("invalid integer %q in list", item)
				}
				out = append(out, n)
			}
			*l = out
		default:
			return fmt.Errorf("expected a list or comma-separated string of integers")
		}
	case yaml.SequenceNode:
		out := make(IntList, 0, len(value.Content))
		for _, n := range value.Content {
			var raw any
			if err := n.Decode(&raw); err != nil {
				return err
			}
			switch v := raw.(type) {
			case int:
				out = append(out, v)
			case string:
				iv, err := strconv.Atoi(strings.TrimSpace(v))
				if err != nil {
					return fmt.Errorf("invalid integer %q in list", v)
				}
				out = append(out, iv)
			default:
				return fmt.Errorf("expected a list or comma-separated string of integers")
			}
		}
		*l = out
	default:
		return fmt.Errorf("expected a list or comma-separated string of integers")
	}
	return nil
}

// StringList accepts either a YAML sequence or a comma-separated string.
type StringList []string

func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var raw any
		if err := value.Decode(&raw); err != nil {
			return err
		}
		switch v := raw.(type) {
		case string:
			out := StringList{}
			for _, item := range strings.Split(v, ",") {
				item = strings.TrimSpace(item)
				if item != "" {
					out = append(out, item)
				}
			}
			*l = out
		case nil:
			*l = nil
		default:
			*l = StringList{fmt.Sprint(v)}
		}
	case yaml.SequenceNode:
		out := make(StringList, 0, len(value.Content))
		for _, n := range value.Content {
			var s string
			if err := n.Decode(&s); err != nil {
				var raw any
				if err2 := n.Decode(&raw); err2 != nil {
					return err
				}
				s = fmt.Sprint(raw)
			}
			out = append(out, s)
		}
		*l = out
	default:
		return fmt.Errorf("expected a list or comma-separated string")
	}
	return nil
}

// Scalar is a string-valued field that also tolerates bare YAML numbers
// and booleans, keeping them exactly as written.
type Scalar string

func (s *Scalar) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected a scalar value")
	}
	if value.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = Scalar(value.Value)
	return nil
}

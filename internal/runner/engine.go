package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/expbench/expbench/internal/adapter"
	"github.com/expbench/expbench/internal/config"
	"github.com/expbench/expbench/internal/model"
	"github.com/expbench/expbench/internal/prompt"
	"github.com/expbench/expbench/internal/result"
	"github.com/expbench/expbench/internal/sandbox"
	"github.com/expbench/expbench/internal/score"
)

// Engine drives one benchmark run: an unrecorded warmup phase followed by
// the measured trials, fanned out across providers up to the configured
// concurrency.
type Engine struct {
	bench    *config.Benchmark
	specs    []model.Spec
	adapters map[model.Provider]adapter.Adapter
	sandbox  sandbox.Sandbox
	log      *log.Logger
}

type Summary struct {
	RunID          string
	RunRoot        string
	RecordsPath    string
	RecordsWritten int
}

type trialTask struct {
	spec     model.Spec
	years    int
	runIndex int
}

func New(bench *config.Benchmark, specs []model.Spec, adapters map[model.Provider]adapter.Adapter, sb sandbox.Sandbox, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{bench: bench, specs: specs, adapters: adapters, sandbox: sb, log: logger}
}

// Run executes the full matrix and appends every measured record to the
// JSONL file at recordsPath, in task order regardless of concurrency.
// Exactly one record is written per measured trial; trial failures become
// error records, never engine errors.
func (e *Engine) Run(ctx context.Context, outputDir, recordsPath string) (*Summary, error) {
	if len(e.specs) == 0 {
		return nil, fmt.Errorf("no models configured")
	}
	// Surface template problems before spending any provider calls.
	if _, err := prompt.Render(e.bench.TemplateText, e.bench.Years[0], e.bench.StatementText); err != nil {
		return nil, err
	}

	runID := result.NewRunID(time.Now())
	runRoot, err := result.CreateRunRoot(outputDir, runID)
	if err != nil {
		return nil, err
	}

	var warmups, tasks []trialTask
	for _, ms := range e.specs {
		for _, y := range e.bench.Years {
			for w := 0; w < e.bench.Settings.Warmup; w++ {
				warmups = append(warmups, trialTask{spec: ms, years: y, runIndex: w})
			}
		}
	}
	for _, ms := range e.specs {
		for _, y := range e.bench.Years {
			for i := 0; i < e.bench.Settings.RunsPerSetting; i++ {
				tasks = append(tasks, trialTask{spec: ms, years: y, runIndex: i})
			}
		}
	}

	total := len(warmups) + len(tasks)
	var done atomic.Int64

	e.log.Info("starting run",
		"run_id", runID,
		"benchmark", e.bench.ID,
		"models", len(e.specs),
		"warmup_calls", len(warmups),
		"measured_trials", len(tasks),
		"concurrency", e.bench.Settings.Concurrency)

	e.forEach(warmups, func(_ int, t trialTask) {
		if err := e.warmupTrial(ctx, t); err != nil {
			e.log.Warn("warmup call failed", "model", t.spec, "years", t.years, "err", err)
		}
		e.log.Info("warmup call done", "model", t.spec, "years", t.years,
			"progress", fmt.Sprintf("%d/%d", done.Add(1), total))
	})

	records := make([]*result.TrialRecord, len(tasks))
	e.forEach(tasks, func(i int, t trialTask) {
		rec := e.runTrial(ctx, runID, runRoot, t)
		records[i] = rec
		kv := []any{"model", t.spec, "years", t.years, "run", t.runIndex, "status", rec.Status,
			"progress", fmt.Sprintf("%d/%d", done.Add(1), total)}
		if rec.ErrorKind != "" {
			kv = append(kv, "error_kind", rec.ErrorKind)
		}
		e.log.Info("trial done", kv...)
	})

	written, err := result.AppendJSONL(recordsPath, records)
	if err != nil {
		return nil, err
	}
	e.log.Info("run complete", "run_id", runID, "records_written", written, "out", recordsPath)
	return &Summary{RunID: runID, RunRoot: runRoot, RecordsPath: recordsPath, RecordsWritten: written}, nil
}

// forEach runs fn for every task, sequentially at concurrency 1 and
// through a bounded worker pool otherwise.
func (e *Engine) forEach(tasks []trialTask, fn func(int, trialTask)) {
	workers := e.bench.Settings.Concurrency
	if workers <= 1 {
		for i, t := range tasks {
			fn(i, t)
		}
		return
	}
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, t := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, t trialTask) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i, t)
		}(i, t)
	}
	wg.Wait()
}

// warmupTrial renders and sends one completion to warm provider caches and
// connections. Nothing is executed or recorded; the caller swallows errors.
func (e *Engine) warmupTrial(ctx context.Context, t trialTask) error {
	pr, err := prompt.Render(e.bench.TemplateText, t.years, e.bench.StatementText)
	if err != nil {
		return err
	}
	ad, ok := e.adapters[t.spec.Provider]
	if !ok {
		return fmt.Errorf("no adapter for provider %s", t.spec.Provider)
	}
	_, err = ad.Complete(ctx, e.request(t, pr))
	return err
}

// runTrial takes one measured task through render, completion, extraction,
// execution and grading. It always returns a record; any failure along the
// way is classified into the record instead of escaping. A panic collapses
// to a runner_error record so one bad trial cannot take down the run.
func (e *Engine) runTrial(ctx context.Context, runID, runRoot string, t trialTask) (rec *result.TrialRecord) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("trial panicked", "model", t.spec, "years", t.years, "run", t.runIndex, "panic", r)
			rec = e.newRecord(runID, t)
			rec.ErrorKind = result.KindRunnerError
			rec.ErrorMessage = truncate(fmt.Sprintf("panic: %v", r))
		}
	}()

	rec = e.newRecord(runID, t)
	art := &result.Artifacts{}

	pr, err := prompt.Render(e.bench.TemplateText, t.years, e.bench.StatementText)
	if err != nil {
		// The template was validated before the run started, so this is
		// an engine fault, not a benchmark authoring problem.
		rec.ErrorKind = result.KindRunnerError
		rec.ErrorMessage = truncate(err.Error())
		return rec
	}
	rec.PromptRenderedSHA256 = pr.SHA256
	art.PromptSystem = pr.System
	art.PromptUser = pr.User

	ad, ok := e.adapters[t.spec.Provider]
	if !ok {
		rec.ErrorKind = result.KindRunnerError
		rec.ErrorMessage = fmt.Sprintf("no adapter for provider %s", t.spec.Provider)
		e.writeArtifacts(runRoot, t, rec, art)
		return rec
	}

	start := time.Now()
	resp, err := ad.Complete(ctx, e.request(t, pr))
	ttlt := msSince(start)
	rec.TTLTMS = &ttlt
	if err != nil {
		rec.ErrorKind = result.KindProviderError
		rec.ErrorMessage = truncate(err.Error())
		e.writeArtifacts(runRoot, t, rec, art)
		return rec
	}
	rec.RawUsage = resp.RawUsage
	rec.UsageDerived = resp.UsageDerived
	respLen := utf8.RuneCountInString(resp.Text)
	rec.ResponseTextLen = &respLen
	art.Completion = &resp.Text

	code, ok := score.ExtractFirstCodeBlock(resp.Text)
	if !ok {
		rec.ErrorKind = result.KindParseError
		rec.ErrorMessage = "No fenced code block found"
		e.writeArtifacts(runRoot, t, rec, art)
		return rec
	}
	codeLen := utf8.RuneCountInString(code)
	rec.ExtractedCodeLen = &codeLen
	art.Code = &code

	execRes, err := e.sandbox.Run(ctx, code, e.bench.InputPayload, e.timeout())
	if err != nil {
		rec.ErrorKind = result.KindRunnerError
		rec.ErrorMessage = truncate(err.Error())
		e.writeArtifacts(runRoot, t, rec, art)
		return rec
	}
	rec.ExecMS = &execRes.ExecMS
	art.ExecStdout = &execRes.Stdout
	art.ExecStderr = &execRes.Stderr

	if !execRes.OK {
		if execRes.TimedOut {
			rec.ErrorKind = result.KindTimeout
		} else {
			rec.ErrorKind = result.KindRuntimeError
		}
		rec.ErrorMessage = truncate(strings.TrimSpace(execRes.Stderr))
		rec.PassedA = bptr(false)
		rec.PassedB = bptr(false)
		rec.PassedAll = bptr(false)
		e.writeArtifacts(runRoot, t, rec, art)
		return rec
	}

	ev := score.EvalTwoLineStdout(execRes.Stdout, e.bench.ExpectedA, e.bench.ExpectedB)
	rec.PassedA = bptr(ev.PassedA)
	rec.PassedB = bptr(ev.PassedB)
	rec.PassedAll = bptr(ev.PassedAll)
	rec.OutputA = ev.OutputA
	rec.OutputB = ev.OutputB
	if ev.PassedAll {
		rec.Status = result.StatusOK
	} else {
		// A graded wrong answer keeps an empty kind; only malformed
		// stdout carries output_parse_error.
		rec.ErrorKind = ev.ErrorKind
		rec.ErrorMessage = ev.ErrorMsg
	}
	e.writeArtifacts(runRoot, t, rec, art)
	return rec
}

func (e *Engine) newRecord(runID string, t trialTask) *result.TrialRecord {
	return &result.TrialRecord{
		RunID:        runID,
		TimestampUTC: time.Now().UTC(),
		BenchmarkID:  e.bench.ID,
		Years:        t.years,
		RunIndex:     t.runIndex,
		Provider:     string(t.spec.Provider),
		ModelSpec:    t.spec.String(),
		ModelKey:     t.spec.Key(),
		Status:       result.StatusError,
		ExpectedA:    e.bench.ExpectedA,
		ExpectedB:    e.bench.ExpectedB,
	}
}

func (e *Engine) request(t trialTask, pr *prompt.Rendered) adapter.Request {
	return adapter.Request{
		Model:           t.spec.Model,
		System:          pr.System,
		User:            pr.User,
		MaxOutputTokens: e.bench.Settings.MaxOutputTokens,
		Temperature:     e.bench.Settings.Temperature,
		Timeout:         e.timeout(),
	}
}

// writeArtifacts is best effort: a full artifact disk must not turn a
// graded trial into a lost record.
func (e *Engine) writeArtifacts(runRoot string, t trialTask, rec *result.TrialRecord, art *result.Artifacts) {
	dir := result.TrialDir(runRoot, string(t.spec.Provider), t.spec.Key(), t.years, t.runIndex)
	if err := result.WriteTrialArtifacts(dir, rec, art); err != nil {
		e.log.Warn("writing trial artifacts", "dir", dir, "err", err)
	}
}

func (e *Engine) timeout() time.Duration {
	return time.Duration(e.bench.Settings.TimeoutS * float64(time.Second))
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func truncate(s string) string {
	const max = 800
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func bptr(b bool) *bool {
	return &b
}

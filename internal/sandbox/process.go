package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Process executes solutions as local child processes.
type Process struct {
	interpreter []string
}

func NewProcess(interpreter []string) *Process {
	if len(interpreter) == 0 {
		interpreter = []string{"python"}
	}
	return &Process{interpreter: interpreter}
}

// Run writes code to solution.py in a fresh scratch dir and runs it with
// stdin wired to the task input. A run past the deadline is killed along
// with its whole process group and reported with exit code 124, keeping
// whatever output it managed to produce.
func (p *Process) Run(ctx context.Context, code, stdin string, timeout time.Duration) (*ExecResult, error) {
	workdir, err := os.MkdirTemp("", "expbench-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(workdir)

	script := filepath.Join(workdir, "solution.py")
	if err := os.WriteFile(script, []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("writing solution: %w", err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	argv := append(append([]string{}, p.interpreter...), script)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = workdir
	cmd.Env = append(os.Environ(), "PYTHONNOUSERSITE=1")
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcGroup(cmd)

	start := time.Now()
	err = cmd.Run()
	execMS := float64(time.Since(start)) / float64(time.Millisecond)

	res := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		ExecMS: execMS,
	}
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			res.ExitCode = 124
			res.TimedOut = true
			return res, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, fmt.Errorf("running %s: %w", argv[0], err)
	}
	res.OK = true
	return res, nil
}

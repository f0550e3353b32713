package sandbox

import (
	"context"
	"fmt"
	"time"
)

const (
	BackendProcess = "process"
	BackendDocker  = "docker"
)

// ExecResult is the outcome of one sandboxed solution run. OK means the
// run finished in time with exit code zero.
type ExecResult struct {
	OK       bool
	ExitCode int
	Stdout   string
	Stderr   string
	ExecMS   float64
	TimedOut bool
}

// Sandbox runs untrusted solution code against a stdin payload.
type Sandbox interface {
	Run(ctx context.Context, code, stdin string, timeout time.Duration) (*ExecResult, error)
}

// New builds the configured backend.
func New(backend string, interpreter []string, image string) (Sandbox, error) {
	switch backend {
	case BackendProcess:
		return NewProcess(interpreter), nil
	case BackendDocker:
		return NewDocker(interpreter, image), nil
	default:
		return nil, fmt.Errorf("unknown sandbox backend %q", backend)
	}
}

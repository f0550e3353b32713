package sandbox_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/expbench/expbench/internal/sandbox"
)

func TestDockerRun(t *testing.T) {
	if os.Getenv("EXPBENCH_DOCKER_TESTS") == "" {
		t.Skip("set EXPBENCH_DOCKER_TESTS=1 to run Docker tests")
	}
	sb := sandbox.NewDocker([]string{"sh"}, "alpine:latest")
	res, err := sb.Run(context.Background(), "cat\n", "26\n77\n", 30*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.OK {
		t.Errorf("OK = false (exit %d, stderr %q)", res.ExitCode, res.Stderr)
	}
	if res.Stdout != "26\n77\n" {
		t.Errorf("stdout = %q, want stdin echoed back", res.Stdout)
	}
}

func TestDockerRunTimeout(t *testing.T) {
	if os.Getenv("EXPBENCH_DOCKER_TESTS") == "" {
		t.Skip("set EXPBENCH_DOCKER_TESTS=1 to run Docker tests")
	}
	sb := sandbox.NewDocker([]string{"sh"}, "alpine:latest")
	res, err := sb.Run(context.Background(), "sleep 300\n", "", 2*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	if res.ExitCode != 124 {
		t.Errorf("exit code = %d, want 124", res.ExitCode)
	}
}

package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
)

// Docker executes solutions inside a throwaway container. The scratch dir
// is bind-mounted at /workspace and the solution's stdio goes through
// files there, so results read back the same way whether or not the
// container timed out.
type Docker struct {
	interpreter []string
	image       string
}

func NewDocker(interpreter []string, image string) *Docker {
	if len(interpreter) == 0 {
		interpreter = []string{"python"}
	}
	if image == "" {
		image = "python:3.12-slim"
	}
	return &Docker{interpreter: interpreter, image: image}
}

func (d *Docker) Run(ctx context.Context, code, stdin string, timeout time.Duration) (*ExecResult, error) {
	workdir, err := os.MkdirTemp("", "expbench-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(workdir)

	// Pre-create the output files so they are readable even when the
	// container is killed before the shell redirections run.
	files := map[string]string{
		"solution.py": code,
		"input.txt":   stdin,
		"stdout.txt":  "",
		"stderr.txt":  "",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(workdir, name), []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	shellCmd := fmt.Sprintf("cd /workspace && %s solution.py < input.txt > stdout.txt 2> stderr.txt",
		strings.Join(d.interpreter, " "))
	containerCfg := &container.Config{
		Image:      d.image,
		Cmd:        []string{"sh", "-c", shellCmd},
		Env:        []string{"PYTHONNOUSERSITE=1"},
		WorkingDir: "/workspace",
		Labels:     map[string]string{"expbench": "true"},
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: workdir,
			Target: "/workspace",
		}},
		// Solutions read stdin and print two lines; nothing needs the
		// network.
		NetworkMode: "none",
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	waitCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	waitResp := cli.ContainerWait(waitCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	exitCode := 0
	timedOut := false
loop:
	for {
		select {
		case err := <-waitResp.Error:
			if err == nil {
				continue
			}
			cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
			if waitCtx.Err() == context.DeadlineExceeded {
				exitCode = 124
				timedOut = true
				break loop
			}
			return nil, fmt.Errorf("waiting for container: %w", err)
		case status := <-waitResp.Result:
			exitCode = int(status.StatusCode)
			break loop
		}
	}
	// Includes container start latency, unlike the process backend, but
	// that is the honest cost of this backend.
	execMS := float64(time.Since(start)) / float64(time.Millisecond)

	stdout, _ := os.ReadFile(filepath.Join(workdir, "stdout.txt"))
	stderr, _ := os.ReadFile(filepath.Join(workdir, "stderr.txt"))

	return &ExecResult{
		OK:       exitCode == 0 && !timedOut,
		ExitCode: exitCode,
		Stdout:   string(stdout),
		Stderr:   string(stderr),
		ExecMS:   execMS,
		TimedOut: timedOut,
	}, nil
}

package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// interruptGrace bounds how long an interrupted docker client may take to
// stop its container before it is killed.
const interruptGrace = 10 * time.Second

// Stdio are the streams an attached docker command is wired to.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// CLI runs docker subcommands.
type CLI interface {
	// Output runs a command and returns its trimmed stdout.
	Output(ctx context.Context, args ...string) (string, error)
	// Attach runs a command with its streams wired to stdio. Cancelling ctx
	// sends the process an interrupt rather than killing it outright.
	Attach(ctx context.Context, stdio Stdio, args ...string) error
}

// DockerCLI shells out to the docker binary.
type DockerCLI struct {
	bin string
}

// NewDockerCLI resolves the docker binary from PATH.
func NewDockerCLI() *DockerCLI {
	bin := "docker"
	if p, err := exec.LookPath("docker"); err == nil {
		bin = p
	}
	return &DockerCLI{bin: bin}
}

func (c *DockerCLI) Output(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("docker %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (c *DockerCLI) Attach(ctx context.Context, stdio Stdio, args ...string) error {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Stdin = stdio.In
	cmd.Stdout = stdio.Out
	cmd.Stderr = stdio.Err
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = interruptGrace
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker %s: %w", args[0], err)
	}
	return nil
}

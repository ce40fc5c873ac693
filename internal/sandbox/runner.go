// Package sandbox builds the agent image and runs the agent inside a
// throwaway docker container with the working tree mounted read-only.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	agenterrors "codeagent/internal/errors"
	"codeagent/internal/logging"

	"golang.org/x/term"
)

// State is whether the sandbox image is available locally.
type State int

const (
	StateImageAbsent State = iota
	StateImagePresent
)

func (s State) String() string {
	if s == StateImagePresent {
		return "image-present"
	}
	return "image-absent"
}

// Config mirrors the docker section of the configuration.
type Config struct {
	ImageName      string
	DockerfilePath string
	WorkingDir     string
	DataDir        string
	Port           int
	ForceRebuild   bool
	AgentCommand   []string
	// HostDir is mounted at WorkingDir; defaults to the current directory.
	HostDir string
}

// Runner drives the docker CLI for one sandbox configuration.
type Runner struct {
	cfg         Config
	hostData    string
	cli         CLI
	stdio       Stdio
	out         io.Writer
	isTTY       func() bool
	onInterrupt func(ctx context.Context) (context.Context, context.CancelFunc)
	logger      logging.Logger
}

// Option customises a Runner.
type Option func(*Runner)

// WithCLI replaces the docker CLI.
func WithCLI(cli CLI) Option {
	return func(r *Runner) { r.cli = cli }
}

// WithStdio sets the streams the container is attached to. Status
// messages go to stdio.Out.
func WithStdio(stdio Stdio) Option {
	return func(r *Runner) {
		r.stdio = stdio
		if stdio.Out != nil {
			r.out = stdio.Out
		}
	}
}

// WithTTY overrides terminal detection.
func WithTTY(isTTY func() bool) Option {
	return func(r *Runner) { r.isTTY = isTTY }
}

// WithInterrupt overrides how interrupts are observed during Run.
func WithInterrupt(notify func(ctx context.Context) (context.Context, context.CancelFunc)) Option {
	return func(r *Runner) { r.onInterrupt = notify }
}

// WithLogger sets the runner logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Runner) { r.logger = logging.OrNop(logger) }
}

// New validates cfg and creates the host data directory.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if strings.TrimSpace(cfg.ImageName) == "" {
		return nil, agenterrors.MissingFields("docker", "image_name")
	}
	if cfg.DockerfilePath == "" {
		cfg.DockerfilePath = "."
	}
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "/app"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "/data"
	}
	if cfg.HostDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.HostDir = wd
	}
	hostData := filepath.Join(cfg.HostDir, "data")
	if err := os.MkdirAll(hostData, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", hostData, err)
	}

	r := &Runner{
		cfg:      cfg,
		hostData: hostData,
		stdio:    Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr},
		out:      os.Stdout,
		isTTY: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
		onInterrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
		logger: logging.NewComponentLogger("Sandbox"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cli == nil {
		r.cli = NewDockerCLI()
	}
	return r, nil
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// State reports whether the image exists locally.
func (r *Runner) State(ctx context.Context) (State, error) {
	out, err := r.cli.Output(ctx, "images", "-q", r.cfg.ImageName)
	if err != nil {
		return StateImageAbsent, fmt.Errorf("check image %s: %w", r.cfg.ImageName, err)
	}
	if strings.TrimSpace(out) == "" {
		return StateImageAbsent, nil
	}
	return StateImagePresent, nil
}

// Rebuild builds the image from the configured Dockerfile directory.
func (r *Runner) Rebuild(ctx context.Context) error {
	fmt.Fprintf(r.out, "Building Docker image %s...\n", r.cfg.ImageName)
	r.logger.Info("building image %s from %s", r.cfg.ImageName, r.cfg.DockerfilePath)
	if err := r.cli.Attach(ctx, r.stdio, "build", "-t", r.cfg.ImageName, r.cfg.DockerfilePath); err != nil {
		return fmt.Errorf("build image %s: %w", r.cfg.ImageName, err)
	}
	return nil
}

// EnsureImage builds the image when it is absent or a rebuild is forced,
// and reports whether a build happened.
func (r *Runner) EnsureImage(ctx context.Context) (bool, error) {
	state, err := r.State(ctx)
	if err != nil {
		return false, err
	}
	if state == StateImagePresent && !r.cfg.ForceRebuild {
		return false, nil
	}
	if err := r.Rebuild(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// RunArgs returns the docker arguments for running command in the
// container. An empty command runs the configured agent command.
func (r *Runner) RunArgs(command []string) []string {
	if len(command) == 0 {
		command = r.cfg.AgentCommand
	}
	args := []string{"run"}
	if r.isTTY() {
		args = append(args, "-it")
	}
	args = append(args,
		"--rm",
		"-v", r.cfg.HostDir+":"+r.cfg.WorkingDir+":ro",
		"-v", r.hostData+":"+r.cfg.DataDir,
	)
	if r.cfg.Port > 0 {
		port := strconv.Itoa(r.cfg.Port)
		args = append(args, "-p", port+":"+port)
	}
	args = append(args, "-w", r.cfg.WorkingDir, r.cfg.ImageName)
	return append(args, command...)
}

// Run ensures the image and runs command in a fresh container, blocking
// until it exits. An interrupt stops the container and is not an error.
func (r *Runner) Run(ctx context.Context, command []string) error {
	if _, err := r.EnsureImage(ctx); err != nil {
		return err
	}

	args := r.RunArgs(command)
	if r.cfg.Port > 0 {
		fmt.Fprintf(r.out, "Port mapping: %d -> %d\n", r.cfg.Port, r.cfg.Port)
	}
	fmt.Fprintf(r.out, "Running: docker %s\n", strings.Join(args, " "))
	fmt.Fprintf(r.out, "Mounting: %s -> %s (read-only)\n", r.cfg.HostDir, r.cfg.WorkingDir)
	fmt.Fprintf(r.out, "Mounting: %s -> %s (read-write)\n", r.hostData, r.cfg.DataDir)
	fmt.Fprintln(r.out, "Press Ctrl+C to stop the container")

	runCtx, stop := r.onInterrupt(ctx)
	defer stop()

	err := r.cli.Attach(runCtx, r.stdio, args...)
	if runCtx.Err() != nil && ctx.Err() == nil {
		fmt.Fprintln(r.out, "\nReceived interrupt signal. Container will be stopped.")
		r.logger.Info("sandbox interrupted: %v", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("run sandbox container: %w", err)
	}
	return nil
}

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

type fakeCLI struct {
	images   string
	imageErr error
	attached [][]string
	attachFn func(ctx context.Context, args []string) error
}

func (f *fakeCLI) Output(_ context.Context, args ...string) (string, error) {
	if args[0] != "images" {
		return "", errors.New("unexpected command " + args[0])
	}
	return f.images, f.imageErr
}

func (f *fakeCLI) Attach(ctx context.Context, _ Stdio, args ...string) error {
	f.attached = append(f.attached, args)
	if f.attachFn != nil {
		return f.attachFn(ctx, args)
	}
	return nil
}

func newTestRunner(t *testing.T, cfg Config, cli *fakeCLI, tty bool) (*Runner, *bytes.Buffer) {
	t.Helper()
	if cfg.HostDir == "" {
		cfg.HostDir = t.TempDir()
	}
	var out bytes.Buffer
	r, err := New(cfg,
		WithCLI(cli),
		WithStdio(Stdio{In: strings.NewReader(""), Out: &out, Err: &out}),
		WithTTY(func() bool { return tty }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, &out
}

func TestNewValidatesAndCreatesDataDir(t *testing.T) {
	if _, err := New(Config{}); err == nil || err.Error() != "Missing required docker configuration (image_name)" {
		t.Fatalf("expected missing image_name, got %v", err)
	}

	host := t.TempDir()
	if _, err := New(Config{ImageName: "img", HostDir: host}, WithCLI(&fakeCLI{})); err != nil {
		t.Fatalf("New: %v", err)
	}
	if info, err := os.Stat(filepath.Join(host, "data")); err != nil || !info.IsDir() {
		t.Fatalf("data dir not created: %v", err)
	}
}

func TestEnsureImageBuildsOnlyWhenNeeded(t *testing.T) {
	cases := []struct {
		name    string
		images  string
		force   bool
		wantRun bool
	}{
		{name: "absent", images: "", wantRun: true},
		{name: "present", images: "sha256:abc", wantRun: false},
		{name: "present but forced", images: "sha256:abc", force: true, wantRun: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cli := &fakeCLI{images: tc.images}
			r, _ := newTestRunner(t, Config{ImageName: "img", DockerfilePath: "./docker", ForceRebuild: tc.force}, cli, false)

			built, err := r.EnsureImage(context.Background())
			if err != nil {
				t.Fatalf("EnsureImage: %v", err)
			}
			if built != tc.wantRun {
				t.Fatalf("built = %v, want %v", built, tc.wantRun)
			}
			if tc.wantRun {
				want := [][]string{{"build", "-t", "img", "./docker"}}
				if !reflect.DeepEqual(cli.attached, want) {
					t.Fatalf("attached = %v", cli.attached)
				}
			} else if len(cli.attached) != 0 {
				t.Fatalf("unexpected build: %v", cli.attached)
			}
		})
	}
}

func TestStateReportsCLIErrors(t *testing.T) {
	r, _ := newTestRunner(t, Config{ImageName: "img"}, &fakeCLI{imageErr: errors.New("daemon down")}, false)
	if _, err := r.State(context.Background()); err == nil || !strings.Contains(err.Error(), "daemon down") {
		t.Fatalf("expected CLI error, got %v", err)
	}
	if _, err := r.EnsureImage(context.Background()); err == nil {
		t.Fatal("EnsureImage should fail when the image check fails")
	}
}

func TestRunArgs(t *testing.T) {
	host := t.TempDir()
	cfg := Config{
		ImageName:    "agent",
		WorkingDir:   "/app",
		DataDir:      "/data",
		Port:         7860,
		AgentCommand: []string{"codeagent", "chat"},
		HostDir:      host,
	}

	r, _ := newTestRunner(t, cfg, &fakeCLI{}, true)
	want := []string{
		"run", "-it", "--rm",
		"-v", host + ":/app:ro",
		"-v", filepath.Join(host, "data") + ":/data",
		"-p", "7860:7860",
		"-w", "/app", "agent",
		"codeagent", "chat",
	}
	if got := r.RunArgs(nil); !reflect.DeepEqual(got, want) {
		t.Fatalf("RunArgs = %v\nwant %v", got, want)
	}

	cfg.Port = 0
	r, _ = newTestRunner(t, cfg, &fakeCLI{}, false)
	got := r.RunArgs([]string{"ls", "-la"})
	want = []string{
		"run", "--rm",
		"-v", host + ":/app:ro",
		"-v", filepath.Join(host, "data") + ":/data",
		"-w", "/app", "agent",
		"ls", "-la",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RunArgs without tty = %v\nwant %v", got, want)
	}
}

func TestRunBuildsThenRuns(t *testing.T) {
	cli := &fakeCLI{}
	r, out := newTestRunner(t, Config{ImageName: "img", AgentCommand: []string{"codeagent", "chat"}}, cli, false)

	if err := r.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(cli.attached) != 2 || cli.attached[0][0] != "build" || cli.attached[1][0] != "run" {
		t.Fatalf("attached = %v", cli.attached)
	}
	if !strings.Contains(out.String(), "Building Docker image img...") {
		t.Fatalf("missing build message in %q", out.String())
	}
	if !strings.Contains(out.String(), "(read-only)") {
		t.Fatalf("missing mount message in %q", out.String())
	}
}

func TestRunReportsInterrupt(t *testing.T) {
	interrupt := make(chan struct{})
	cli := &fakeCLI{
		images: "present",
		attachFn: func(ctx context.Context, _ []string) error {
			close(interrupt)
			<-ctx.Done()
			return errors.New("signal: interrupt")
		},
	}
	var out bytes.Buffer
	r, err := New(Config{ImageName: "img", HostDir: t.TempDir()},
		WithCLI(cli),
		WithStdio(Stdio{Out: &out, Err: &out}),
		WithTTY(func() bool { return false }),
		WithInterrupt(func(ctx context.Context) (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(ctx)
			go func() {
				<-interrupt
				cancel()
			}()
			return ctx, cancel
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.Run(context.Background(), []string{"sleep", "100"}); err != nil {
		t.Fatalf("interrupted run should not fail: %v", err)
	}
	if !strings.Contains(out.String(), "Received interrupt signal. Container will be stopped.") {
		t.Fatalf("missing interrupt message in %q", out.String())
	}
}

func TestRunPropagatesContainerFailure(t *testing.T) {
	cli := &fakeCLI{
		images:   "present",
		attachFn: func(context.Context, []string) error { return errors.New("exit status 125") },
	}
	r, _ := newTestRunner(t, Config{ImageName: "img"}, cli, false)
	if err := r.Run(context.Background(), []string{"true"}); err == nil || !strings.Contains(err.Error(), "exit status 125") {
		t.Fatalf("expected container failure, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	if StateImageAbsent.String() != "image-absent" || StateImagePresent.String() != "image-present" {
		t.Fatal("unexpected state names")
	}
}

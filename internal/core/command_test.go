package core

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func testRunner(t *testing.T) *ExecRunner {
	t.Helper()
	return NewExecRunner("", 10*time.Second, log.New(io.Discard))
}

func TestExecRunner_SeparatesStreams(t *testing.T) {
	r := testRunner(t)

	res, err := r.Run(context.Background(), "sh", []string{"-c", "echo out; echo err >&2; exit 3"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stdout != "out\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if res.Stderr != "err\n" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if got := res.Output(); got != "out\nerr" {
		t.Errorf("Output() = %q", got)
	}
}

func TestExecRunner_ArgsAreNotShellInterpreted(t *testing.T) {
	r := testRunner(t)

	res, err := r.Run(context.Background(), "echo", []string{"src; rm -rf /", "$HOME"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stdout != "src; rm -rf / $HOME\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

func TestExecRunner_WorkDir(t *testing.T) {
	dir := t.TempDir()
	r := testRunner(t)
	r.WorkDir = dir

	res, err := r.Run(context.Background(), "pwd", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(res.Stdout))
	want, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}

func TestExecRunner_Timeout(t *testing.T) {
	r := testRunner(t)
	r.Timeout = 100 * time.Millisecond

	start := time.Now()
	res, err := r.Run(context.Background(), "sleep", []string{"5"})
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("Run() error = %v, want ErrExecutionTimeout", err)
	}
	if res == nil || res.ExitCode != -1 {
		t.Errorf("expected timeout result with exit -1, got %+v", res)
	}
	if time.Since(start) > 4*time.Second {
		t.Errorf("timeout did not stop the command promptly")
	}
}

func TestExecRunner_MissingExecutable(t *testing.T) {
	r := testRunner(t)

	if _, err := r.Run(context.Background(), "definitely-not-a-real-binary-gk", nil); err == nil {
		t.Fatalf("expected error for missing executable")
	}
	if _, err := r.Run(context.Background(), "", nil); err == nil {
		t.Fatalf("expected error for empty executable")
	}
}

func TestExecRunner_WritesLog(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")
	r := testRunner(t)
	r.LogDir = logDir

	res, err := r.Run(context.Background(), "echo", []string{"logged"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.LogPath == "" || filepath.Dir(res.LogPath) != logDir {
		t.Fatalf("LogPath = %q", res.LogPath)
	}
	data, err := os.ReadFile(res.LogPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, want := range []string{"Executable: echo", "logged", "Exit Code: 0"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log missing %q:\n%s", want, data)
		}
	}
}

func TestRunResult_OutputNil(t *testing.T) {
	var r *RunResult
	if r.Output() != "" {
		t.Fatalf("nil result should have empty output")
	}
}

package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Dicklesworthstone/gatekeeper/internal/utils"
)

// DefaultExecutionTimeout bounds a single command run when no timeout is configured.
const DefaultExecutionTimeout = 5 * time.Minute

// ErrExecutionTimeout is returned by runners when the deadline passes before the command exits.
var ErrExecutionTimeout = errors.New("command execution timed out")

// RunResult holds the result of running a command.
type RunResult struct {
	Stdout   string        `json:"stdout" yaml:"stdout"`
	Stderr   string        `json:"stderr" yaml:"stderr"`
	ExitCode int           `json:"exit_code" yaml:"exit_code"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	// LogPath is set when the run was also written to an execution log.
	LogPath string `json:"log_path,omitempty" yaml:"log_path,omitempty"`
}

// Output returns stdout followed by stderr, trimmed of trailing newlines.
func (r *RunResult) Output() string {
	if r == nil {
		return ""
	}
	out := strings.TrimRight(r.Stdout, "\n")
	if errOut := strings.TrimRight(r.Stderr, "\n"); errOut != "" {
		if out != "" {
			out += "\n"
		}
		out += errOut
	}
	return out
}

// Runner executes a validated command. Implementations must pass args to the
// executable as discrete argv entries and never through a shell.
type Runner interface {
	Run(ctx context.Context, executable string, args []string) (*RunResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// WorkDir is the working directory; empty inherits the process CWD.
	WorkDir string
	// Timeout bounds each run. Zero uses DefaultExecutionTimeout.
	Timeout time.Duration
	// LogDir, when set, receives one log file per run.
	LogDir string
	// Stream, when set, receives stdout and stderr as they are produced.
	Stream io.Writer

	Logger *log.Logger
	now    func() time.Time
}

// NewExecRunner creates a runner with the given working directory and timeout.
func NewExecRunner(workDir string, timeout time.Duration, logger *log.Logger) *ExecRunner {
	if logger == nil {
		logger = log.Default()
	}
	return &ExecRunner{WorkDir: workDir, Timeout: timeout, Logger: logger, now: time.Now}
}

// Run executes executable with args. A non-zero exit is reported through
// RunResult.ExitCode with a nil error; ErrExecutionTimeout is returned when the
// timeout or ctx deadline expires.
func (r *ExecRunner) Run(ctx context.Context, executable string, args []string) (*RunResult, error) {
	if executable == "" {
		return nil, fmt.Errorf("empty command")
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultExecutionTimeout
	}
	now := r.now
	if now == nil {
		now = time.Now
	}
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startTime := now()

	var logFile *os.File
	var logPath string
	if r.LogDir != "" {
		logPath = utils.ExecutionLogPath(r.LogDir, executable, startTime)
		if err := os.MkdirAll(r.LogDir, 0750); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logFile = f

		fmt.Fprintf(logFile, "=== gatekeeper execution ===\n")
		fmt.Fprintf(logFile, "Time: %s\n", startTime.Format(time.RFC3339))
		fmt.Fprintf(logFile, "Executable: %s\n", executable)
		fmt.Fprintf(logFile, "Args: %d\n", len(args))
		fmt.Fprintf(logFile, "CWD: %s\n", r.WorkDir)
		fmt.Fprintf(logFile, "============================\n\n")
	}

	cmd := exec.CommandContext(ctx, executable, args...)
	if r.WorkDir != "" {
		cmd.Dir = r.WorkDir
	}
	cmd.Env = os.Environ()
	// Children that inherit stdout must not hold Run open past cancellation.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	outWriters := []io.Writer{&stdout}
	errWriters := []io.Writer{&stderr}
	if r.Stream != nil {
		outWriters = append(outWriters, r.Stream)
		errWriters = append(errWriters, r.Stream)
	}
	if logFile != nil {
		outWriters = append(outWriters, logFile)
		errWriters = append(errWriters, logFile)
	}
	cmd.Stdout = io.MultiWriter(outWriters...)
	cmd.Stderr = io.MultiWriter(errWriters...)

	err := cmd.Run()
	duration := now().Sub(startTime)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.Warn("command timed out", "executable", executable, "timeout", timeout)
		if logFile != nil {
			fmt.Fprintf(logFile, "\n============================\nTimed out after %s\n", timeout)
		}
		return &RunResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1, Duration: duration, LogPath: logPath},
			fmt.Errorf("%w after %s", ErrExecutionTimeout, timeout)
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running command: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	if logFile != nil {
		fmt.Fprintf(logFile, "\n============================\n")
		fmt.Fprintf(logFile, "Exit Code: %d\n", exitCode)
		fmt.Fprintf(logFile, "Duration: %s\n", duration)
		fmt.Fprintf(logFile, "Completed: %s\n", now().Format(time.RFC3339))
	}
	logger.Debug("command finished", "executable", executable, "exit_code", exitCode, "duration", duration)

	return &RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: duration,
		LogPath:  logPath,
	}, nil
}

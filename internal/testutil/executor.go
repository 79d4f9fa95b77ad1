package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Dicklesworthstone/gatekeeper/internal/core"
)

// RunCall records a single Runner invocation.
type RunCall struct {
	Executable string
	Args       []string
}

// MockRunner records and simulates command execution for testing.
// It implements core.Runner.
type MockRunner struct {
	mu sync.Mutex

	// RecordedCalls contains all commands that were run.
	RecordedCalls []RunCall

	// Result is returned by Run. A nil Result with a nil Err yields an empty success.
	Result *core.RunResult

	// Err is returned by Run.
	Err error

	// RunFunc allows dynamic results based on the command.
	// If set, this is called instead of returning Result/Err.
	RunFunc func(ctx context.Context, executable string, args []string) (*core.RunResult, error)
}

var _ core.Runner = (*MockRunner)(nil)

// NewMockRunner creates a mock returning stdout and exitCode for every call.
func NewMockRunner(stdout string, exitCode int) *MockRunner {
	return &MockRunner{Result: &core.RunResult{Stdout: stdout, ExitCode: exitCode}}
}

// NewMockRunnerFunc creates a mock with dynamic behavior based on the command.
func NewMockRunnerFunc(fn func(ctx context.Context, executable string, args []string) (*core.RunResult, error)) *MockRunner {
	return &MockRunner{RunFunc: fn}
}

// Run records the call and returns the configured result.
func (m *MockRunner) Run(ctx context.Context, executable string, args []string) (*core.RunResult, error) {
	m.mu.Lock()
	m.RecordedCalls = append(m.RecordedCalls, RunCall{Executable: executable, Args: slices.Clone(args)})
	fn, result, err := m.RunFunc, m.Result, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, executable, args)
	}
	if result == nil && err == nil {
		return &core.RunResult{}, nil
	}
	if result != nil {
		copied := *result
		return &copied, err
	}
	return nil, err
}

// CallCount returns the number of recorded calls.
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// LastCall returns the most recent call, or nil if none.
func (m *MockRunner) LastCall() *RunCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.RecordedCalls) == 0 {
		return nil
	}
	call := m.RecordedCalls[len(m.RecordedCalls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordedCalls = nil
}

// WasCalled returns true if any command was run.
func (m *MockRunner) WasCalled() bool {
	return m.CallCount() > 0
}

// WasCalledWith returns true if executable ran with exactly args.
func (m *MockRunner) WasCalledWith(executable string, args ...string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.RecordedCalls {
		if call.Executable == executable && slices.Equal(call.Args, args) {
			return true
		}
	}
	return false
}

// RunnerSequence returns a different result for each call.
type RunnerSequence struct {
	mu       sync.Mutex
	index    int
	Sequence []SequenceStep
}

// SequenceStep defines the outcome of one call in a sequence.
type SequenceStep struct {
	Result *core.RunResult
	Err    error
}

var _ core.Runner = (*RunnerSequence)(nil)

// NewRunnerSequence creates a runner that returns steps in order.
func NewRunnerSequence(steps ...SequenceStep) *RunnerSequence {
	return &RunnerSequence{Sequence: steps}
}

// Run returns the next step, or an error if exhausted.
func (m *RunnerSequence) Run(_ context.Context, _ string, _ []string) (*core.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index >= len(m.Sequence) {
		return nil, fmt.Errorf("mock sequence exhausted after %d calls", len(m.Sequence))
	}
	step := m.Sequence[m.index]
	m.index++
	return step.Result, step.Err
}

// Reset rewinds the sequence.
func (m *RunnerSequence) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = 0
}

// Package runner executes external analysis tools with a hard deadline.
//
// Every invocation ends in a fully formed engine.ToolResult: tools that hang
// are sent SIGTERM at their timeout and killed once the grace period expires,
// keeping whatever they printed so far.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/logging"
)

const (
	DefaultTimeout = 60 * time.Second
	DefaultGrace   = 2 * time.Second
	ProbeTimeout   = 5 * time.Second
)

// Task describes one tool invocation. Command is executed directly, never
// through a shell.
type Task struct {
	ToolName string
	Command  string
	Args     []string
	Dir      string
	Env      []string // appended to the current environment
	Timeout  time.Duration
}

// Observer receives one call per finished run.
type Observer interface {
	ObserveToolRun(tool string, success bool, d time.Duration)
}

// Runner spawns tools. The zero value is not usable; call New.
type Runner struct {
	grace        time.Duration
	timeout      time.Duration
	probeTimeout time.Duration
	observer     Observer
	lookPath     func(string) (string, error)
}

type Option func(*Runner)

// WithGrace sets the delay between SIGTERM and the forced kill.
func WithGrace(d time.Duration) Option {
	return func(r *Runner) { r.grace = d }
}

// WithDefaultTimeout sets the timeout used by tasks that leave Timeout unset.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithObserver reports every run to o, typically a metrics recorder.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

func New(opts ...Option) *Runner {
	r := &Runner{
		grace:        DefaultGrace,
		timeout:      DefaultTimeout,
		probeTimeout: ProbeTimeout,
		lookPath:     exec.LookPath,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Probe reports whether command resolves on PATH. It gives up after five
// seconds and never panics.
func (r *Runner) Probe(ctx context.Context, command string) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- false
			}
		}()
		_, err := r.lookPath(command)
		done <- err == nil
	}()

	select {
	case ok = <-done:
		return ok
	case <-ctx.Done():
		return false
	}
}

// Run executes t and returns its result. Any exit status counts as success
// since scanners exit non-zero when they find issues. Timeouts and spawn
// failures are reported as Success=false. Run never panics.
func (r *Runner) Run(ctx context.Context, t Task) (res engine.ToolResult) {
	start := time.Now()
	res.ToolName = t.ToolName

	defer func() {
		if p := recover(); p != nil {
			res = engine.ToolResult{
				ToolName:  t.ToolName,
				Success:   false,
				ErrorText: fmt.Sprintf("panic: %v", p),
				ExitCode:  -1,
			}
		}
		res.Duration = time.Since(start)
		if r.observer != nil {
			r.observer.ObserveToolRun(t.ToolName, res.Success, res.Duration)
		}
		logging.L().Debugw("tool finished", "tool", t.ToolName, "success", res.Success,
			"exit_code", res.ExitCode, "duration", res.Duration)
	}()

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logging.L().Debugw("executing tool", "tool", t.ToolName, "cmd", t.Command+" "+strings.Join(t.Args, " "), "dir", t.Dir)

	cmd := exec.CommandContext(runCtx, t.Command, t.Args...)
	cmd.Dir = t.Dir
	if len(t.Env) > 0 {
		cmd.Env = append(os.Environ(), t.Env...)
	}
	var stdout, stderr syncBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	prepare(cmd)
	cmd.WaitDelay = r.grace

	err := cmd.Run()
	res.RawOutput = stdout.String()

	switch {
	case err == nil, errors.Is(err, exec.ErrWaitDelay) && runCtx.Err() == nil:
		res.Success = true
		res.ExitCode = cmd.ProcessState.ExitCode()
	case runCtx.Err() != nil:
		killGroup(cmd)
		res.Success = false
		res.ExitCode = -1
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			res.ErrorText = fmt.Sprintf("timeout after %s", timeout)
		} else {
			res.ErrorText = fmt.Sprintf("canceled: %v", runCtx.Err())
		}
		return res
	default:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			res.Success = false
			res.ExitCode = -1
			res.ErrorText = err.Error()
			return res
		}
		res.Success = true
		res.ExitCode = exitErr.ExitCode()
	}

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		res.ErrorText = msg
	}
	if out := bytes.TrimSpace(stdout.Bytes()); len(out) > 0 && json.Valid(out) {
		res.Parsed = json.RawMessage(out)
	}
	return res
}

// RunMany launches every task at once and waits for all of them. Result i
// belongs to task i.
func (r *Runner) RunMany(ctx context.Context, tasks []Task) []engine.ToolResult {
	start := time.Now()
	logging.L().Infof("[PARALLEL] Launching %d tools simultaneously", len(tasks))

	results := make([]engine.ToolResult, len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t Task) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					results[i] = engine.ToolResult{
						ToolName:  t.ToolName,
						ErrorText: fmt.Sprintf("panic: %v", p),
						ExitCode:  -1,
					}
				}
			}()
			results[i] = r.Run(ctx, t)
		}(i, t)
	}
	wg.Wait()

	logging.L().Infof("[PARALLEL] All %d tools completed in %s", len(tasks), time.Since(start).Round(time.Millisecond))
	return results
}

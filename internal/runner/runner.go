// Package runner invokes the external browser-test runner and ingests its
// per-test results. The runner is an external collaborator: this package
// owns the subprocess contract only, never the runner's report schema
// beyond the fields consumed here.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"stepwright/internal/logging"
)

// Options control one runner invocation.
type Options struct {
	Workers  int
	Retries  int
	Timeout  time.Duration // per-test timeout
	Reporter string
	Grep     string
}

// RunResult is the outcome of one runner invocation.
type RunResult struct {
	Success    bool
	ExitCode   int
	Stdout     string
	Stderr     string
	ReportPath string
	Duration   time.Duration
}

// ErrorText returns the textual error content handed to the classifier.
func (r RunResult) ErrorText() string {
	if r.Stderr != "" {
		return r.Stderr + "\n" + r.Stdout
	}
	return r.Stdout
}

// Invoker abstracts the runner subprocess so the healing controller can be
// tested against a fake.
type Invoker interface {
	Run(ctx context.Context, testFile string, opts Options) (RunResult, error)
}

// runScale converts the per-test timeout into a whole-run deadline. A run
// includes setup, retries, and teardown on top of the test itself.
const runScale = 3

// CLIRunner shells out to the configured test runner binary.
type CLIRunner struct {
	Binary     string   // e.g. "npx"
	BaseArgs   []string // e.g. ["playwright", "test"]
	Dir        string
	ReportPath string // where the runner writes its JSON report, if anywhere
}

// Run executes the runner against one test file. The subprocess gets a
// deadline of opts.Timeout scaled up for the whole run; expiry kills it.
// A non-zero exit is a failed run, not an error: err is reserved for
// failures to execute at all.
func (r *CLIRunner) Run(ctx context.Context, testFile string, opts Options) (RunResult, error) {
	if r.Binary == "" {
		return RunResult{}, fmt.Errorf("runner binary not configured")
	}

	perTest := opts.Timeout
	if perTest <= 0 {
		perTest = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, perTest*runScale)
	defer cancel()

	args := append([]string(nil), r.BaseArgs...)
	args = append(args, testFile)
	if opts.Grep != "" {
		args = append(args, "--grep", opts.Grep)
	}
	if opts.Workers > 0 {
		args = append(args, "--workers", strconv.Itoa(opts.Workers))
	}
	if opts.Retries > 0 {
		args = append(args, "--retries", strconv.Itoa(opts.Retries))
	}
	if opts.Reporter != "" {
		args = append(args, "--reporter", opts.Reporter)
	}
	args = append(args, "--timeout", strconv.Itoa(int(perTest.Milliseconds())))

	cmd := exec.CommandContext(runCtx, r.Binary, args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Runner("Invoking runner: %s %s", r.Binary, strings.Join(args, " "))
	start := time.Now()
	err := cmd.Run()
	res := RunResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ReportPath: r.ReportPath,
		Duration:   time.Since(start),
	}

	switch {
	case err == nil:
		res.Success = true
	case runCtx.Err() == context.DeadlineExceeded:
		res.ExitCode = -1
		res.Stderr += fmt.Sprintf("\nrunner killed after %s (whole-run deadline)", perTest*runScale)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// Could not execute at all (missing binary, bad dir).
			return res, fmt.Errorf("invoke runner: %w", err)
		}
	}

	logging.Runner("Runner finished: success=%v exit=%d duration=%s",
		res.Success, res.ExitCode, res.Duration.Round(time.Millisecond))
	return res, nil
}

// =============================================================================
// PER-TEST RESULT INGESTION
// =============================================================================

// TestError is one error attached to a test result.
type TestError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// TestResult is one per-test record from the runner's report.
type TestResult struct {
	Status    string      `json:"status"` // passed | failed
	TitlePath []string    `json:"titlePath"`
	Errors    []TestError `json:"errors,omitempty"`
}

// Key joins the title path into the map key used for classification maps.
func (t TestResult) Key() string {
	return strings.Join(t.TitlePath, " > ")
}

// Failed reports whether the record represents a failure.
func (t TestResult) Failed() bool {
	return t.Status == "failed"
}

// ErrorText concatenates all error messages and stacks for classification.
func (t TestResult) ErrorText() string {
	var b strings.Builder
	for _, e := range t.Errors {
		b.WriteString(e.Message)
		if e.Stack != "" {
			b.WriteString("\n")
			b.WriteString(e.Stack)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// ResultMap keys results by joined title path.
func ResultMap(results []TestResult) map[string]TestResult {
	m := make(map[string]TestResult, len(results))
	for _, r := range results {
		m[r.Key()] = r
	}
	return m
}

// Failures returns the failed records in report order.
func Failures(results []TestResult) []TestResult {
	var out []TestResult
	for _, r := range results {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// ParseReportFile reads a JSON report: either a bare array of TestResult or
// an object with a "tests" array.
func ParseReportFile(path string) ([]TestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var results []TestResult
	if err := json.Unmarshal(data, &results); err == nil {
		return results, nil
	}
	var wrapped struct {
		Tests []TestResult `json:"tests"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return wrapped.Tests, nil
}

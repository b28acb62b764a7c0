package core

import (
	"context"
	"os"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
)

// acceptEverythingValidator always exits 42, regardless of input — the
// degenerate validator the sanity fuzzer exists to catch.
type acceptEverythingValidator struct{}

func (acceptEverythingValidator) Compile(ctx context.Context) (bool, string, error) {
	return true, "", nil
}
func (acceptEverythingValidator) Run(ctx context.Context, stdinPath, stdoutPath, stderrPath string, args []string, timelim float64, memlimMB int) (RunStatus, error) {
	return RunStatus{Exited: true, ExitCode: 42}, nil
}
func (acceptEverythingValidator) RunCmd(memlimMB int) []string { return nil }

// Concrete scenario: junk sanity with a single accept-everything validator.
// Every junk case, and every mutation that applies to the input, should
// trigger a warning, since nothing is ever rejected.
func TestSanityCheckWarnsWhenValidatorAcceptsEverything(t *testing.T) {
	dir := t.TempDir()
	diag := NewRunDiagnostics(zerolog.Nop(), false, false, 15)
	env := &ProblemEnv{
		TmpDir:          t.TempDir(),
		Config:          &ProblemConfig{},
		Diag:            diag,
		Log:             zerolog.Nop(),
		InputValidators: []Program{acceptEverythingValidator{}},
		infileIndex:     map[string]*TestCase{},
	}
	driver := NewInputValidatorDriver(env)

	if err := os.WriteFile(dir+"/1.in", []byte("5 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	group := &TestGroup{
		ProblemAspect: NewProblemAspect(diag, "secret"),
		env:           env,
		Name:          "secret",
		resolved:      &resolvedGroupConfig{Aggregation: "min"},
	}
	tc := NewTestCase(env, group, dir+"/1")

	driver.SanityCheck(context.Background(), []string{""}, []*TestCase{tc})

	if diag.WarningCount() == 0 {
		t.Fatalf("expected at least one warning when the only validator accepts every junk input")
	}
}

// A validator that properly rejects the fixed junk cases and the mutated
// inputs (non-42 exit) should not trigger any sanity-check warning.
func TestSanityCheckSilentWhenValidatorRejectsJunk(t *testing.T) {
	dir := t.TempDir()
	diag := NewRunDiagnostics(zerolog.Nop(), false, false, 15)
	env := &ProblemEnv{
		TmpDir:          t.TempDir(),
		Config:          &ProblemConfig{},
		Diag:            diag,
		Log:             zerolog.Nop(),
		InputValidators: []Program{rejectJunkValidator{}},
		infileIndex:     map[string]*TestCase{},
	}
	driver := NewInputValidatorDriver(env)

	if err := os.WriteFile(dir+"/1.in", []byte("5 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	group := &TestGroup{
		ProblemAspect: NewProblemAspect(diag, "secret"),
		env:           env,
		Name:          "secret",
		resolved:      &resolvedGroupConfig{Aggregation: "min"},
	}
	tc := NewTestCase(env, group, dir+"/1")

	driver.SanityCheck(context.Background(), []string{""}, []*TestCase{tc})

	if diag.WarningCount() != 0 {
		t.Fatalf("expected no warnings when the validator correctly rejects junk, got %d", diag.WarningCount())
	}
}

// rejectJunkValidator exits non-42 on anything that isn't exactly one line of
// two single-space-separated integers without leading zeros, a stand-in for a
// well-formed validator.
type rejectJunkValidator struct{}

var twoIntsLineRE = regexp.MustCompile(`^(0|[1-9][0-9]*) (0|[1-9][0-9]*)\n$`)

func (rejectJunkValidator) Compile(ctx context.Context) (bool, string, error) { return true, "", nil }
func (rejectJunkValidator) Run(ctx context.Context, stdinPath, stdoutPath, stderrPath string, args []string, timelim float64, memlimMB int) (RunStatus, error) {
	data, err := os.ReadFile(stdinPath)
	if err != nil {
		return RunStatus{Exited: true, ExitCode: 1}, nil
	}
	if !twoIntsLineRE.Match(data) {
		return RunStatus{Exited: true, ExitCode: 1}, nil
	}
	return RunStatus{Exited: true, ExitCode: 42}, nil
}
func (rejectJunkValidator) RunCmd(memlimMB int) []string { return nil }

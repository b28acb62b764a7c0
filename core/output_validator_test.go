package core

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/rs/zerolog"
)

// fakeInteractiveCoordinator reports a fixed five-field status line, as if
// it had just run a validator/submission pair to completion.
type fakeInteractiveCoordinator struct {
	valStatusCode, subStatusCode int
	subRuntime                   float64
	firstExiter                  string
}

func (f *fakeInteractiveCoordinator) Compile(ctx context.Context) (bool, string, error) { return true, "", nil }
func (f *fakeInteractiveCoordinator) Run(ctx context.Context, stdinPath, stdoutPath, stderrPath string, args []string, timelim float64, memlimMB int) (RunStatus, error) {
	line := fmt.Sprintf("%d 0.000000 %d %f %s", f.valStatusCode, f.subStatusCode, f.subRuntime, f.firstExiter)
	if stdoutPath != "" {
		_ = os.WriteFile(stdoutPath, []byte(line), 0o644)
	}
	return RunStatus{Exited: true, ExitCode: 0}, nil
}
func (f *fakeInteractiveCoordinator) RunCmd(memlimMB int) []string { return nil }

// Concrete scenario: interactive WA-first beats TLE. The validator rejects
// the submission's output (exit 43) and is reported as the side that exited
// first; even though the submission side's status looks like a SIGXCPU
// timeout, the validator's WA verdict wins because it is checked first.
func TestInteractiveWAFirstBeatsTLE(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/1.in", []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir+"/1.ans", []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	diag := NewRunDiagnostics(zerolog.Nop(), false, false, 15)
	env := &ProblemEnv{
		RunID:   "test",
		Dir:     dir,
		DataDir: dir,
		TmpDir:  t.TempDir(),
		Config:  &ProblemConfig{Validation: "default", Interactive: true},
		Diag:    diag,
		Log:     zerolog.Nop(),
		infileIndex: map[string]*TestCase{},
		Cache:   NewMemoryResultCache(),
	}
	group := &TestGroup{
		ProblemAspect: NewProblemAspect(diag, "secret"),
		env:           env,
		Name:          "secret",
		resolved:      &resolvedGroupConfig{Aggregation: "min"},
	}
	env.Root = group
	env.OutputValidators = []Program{&fakeValidator{}}

	coordinator := &fakeInteractiveCoordinator{
		valStatusCode: 43 << 8,                 // exited, exit code 43 (WA)
		subStatusCode: int(syscall.SIGXCPU),     // signaled, looks like a timeout
		subRuntime:    5.0,
		firstExiter:   "validator",
	}
	ov := NewOutputValidatorDriver(env, coordinator)

	tc := NewTestCase(env, group, dir+"/1")
	errorHandler := NewProblemAspect(diag, "submission")
	res := ov.ValidateInteractive(context.Background(), tc, &fakeSubmission{wallSeconds: 5}, 3, &errorHandler)

	if res.Verdict != WA {
		t.Fatalf("verdict = %v, want WA (validator-first rejection beats a TLE-looking submission status)", res.Verdict)
	}
}

func TestInteractiveSubmissionTLEWhenValidatorNotFirst(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/1.in", []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir+"/1.ans", []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	diag := NewRunDiagnostics(zerolog.Nop(), false, false, 15)
	env := &ProblemEnv{
		RunID:   "test",
		Dir:     dir,
		DataDir: dir,
		TmpDir:  t.TempDir(),
		Config:  &ProblemConfig{Validation: "default", Interactive: true},
		Diag:    diag,
		Log:     zerolog.Nop(),
		infileIndex: map[string]*TestCase{},
		Cache:   NewMemoryResultCache(),
	}
	group := &TestGroup{
		ProblemAspect: NewProblemAspect(diag, "secret"),
		env:           env,
		Name:          "secret",
		resolved:      &resolvedGroupConfig{Aggregation: "min"},
	}
	env.Root = group
	env.OutputValidators = []Program{&fakeValidator{}}

	coordinator := &fakeInteractiveCoordinator{
		valStatusCode: 42 << 8,             // exited, exit code 42 (AC so far)
		subStatusCode: int(syscall.SIGXCPU), // signaled, a genuine timeout
		subRuntime:    5.0,
		firstExiter:   "submission",
	}
	ov := NewOutputValidatorDriver(env, coordinator)

	tc := NewTestCase(env, group, dir+"/1")
	errorHandler := NewProblemAspect(diag, "submission")
	res := ov.ValidateInteractive(context.Background(), tc, &fakeSubmission{wallSeconds: 5}, 3, &errorHandler)

	if res.Verdict != TLE {
		t.Fatalf("verdict = %v, want TLE when the submission (not the validator) exits first", res.Verdict)
	}
}

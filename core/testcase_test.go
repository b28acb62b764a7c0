package core

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
)

// fakeSubmission is a Program stand-in that always exits cleanly and reports
// a fixed wall-clock runtime, independent of the time limit it is invoked
// with — real enforcement of the limit is the runner's job, not the fake's.
type fakeSubmission struct {
	wallSeconds float64
}

func (f *fakeSubmission) Compile(ctx context.Context) (bool, string, error) { return true, "", nil }
func (f *fakeSubmission) Run(ctx context.Context, stdinPath, stdoutPath, stderrPath string, args []string, timelim float64, memlimMB int) (RunStatus, error) {
	if stdoutPath != "" {
		_ = os.WriteFile(stdoutPath, []byte("42\n"), 0o644)
	}
	return RunStatus{Exited: true, ExitCode: 0, WallSeconds: f.wallSeconds}, nil
}
func (f *fakeSubmission) RunCmd(memlimMB int) []string { return []string{"fake-submission"} }

// fakeValidator always reports AC (exit code 42), matching the default
// validator's contract for an exact-match run.
type fakeValidator struct{}

func (f *fakeValidator) Compile(ctx context.Context) (bool, string, error) { return true, "", nil }
func (f *fakeValidator) Run(ctx context.Context, stdinPath, stdoutPath, stderrPath string, args []string, timelim float64, memlimMB int) (RunStatus, error) {
	return RunStatus{Exited: true, ExitCode: 42}, nil
}
func (f *fakeValidator) RunCmd(memlimMB int) []string { return []string{"fake-validator"} }

func newTestCaseFixture(t *testing.T) (*TestCase, *OutputValidatorDriver) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/1.in", []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir+"/1.ans", []byte("42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	diag := NewRunDiagnostics(zerolog.Nop(), false, false, 15)
	env := &ProblemEnv{
		RunID:            "test",
		Dir:              dir,
		DataDir:          dir,
		TmpDir:           t.TempDir(),
		Config:           &ProblemConfig{Validation: "default"},
		Diag:             diag,
		Log:              zerolog.Nop(),
		OutputValidators: []Program{&fakeValidator{}},
		infileIndex:      map[string]*TestCase{},
		Cache:            NewMemoryResultCache(),
	}

	group := &TestGroup{
		ProblemAspect: NewProblemAspect(diag, "secret"),
		env:           env,
		Name:          "secret",
		resolved:      &resolvedGroupConfig{Aggregation: "min"},
	}
	env.Root = group

	tc := NewTestCase(env, group, dir+"/1")
	ov := NewOutputValidatorDriver(env, nil)
	return tc, ov
}

// Boundary: runtime <= lo classifies as AC at every limit.
func TestThreeLimitBoundaryWithinLo(t *testing.T) {
	tc, ov := newTestCaseFixture(t)
	sub := &fakeSubmission{wallSeconds: 0.5}
	res, resLo, resHi := tc.RunSubmission(context.Background(), ov, sub, "sub", nil, 3, 1, 6)
	if res.Verdict != AC || resLo.Verdict != AC || resHi.Verdict != AC {
		t.Fatalf("got res=%v resLo=%v resHi=%v, want all AC", res.Verdict, resLo.Verdict, resHi.Verdict)
	}
}

// runtime == timelim => res_lo is TLE.
func TestThreeLimitBoundaryAtTimelim(t *testing.T) {
	tc, ov := newTestCaseFixture(t)
	sub := &fakeSubmission{wallSeconds: 3}
	_, resLo, resHi := tc.RunSubmission(context.Background(), ov, sub, "sub", nil, 3, 1, 6)
	if resLo.Verdict != TLE {
		t.Fatalf("resLo.Verdict = %v, want TLE at runtime==timelim", resLo.Verdict)
	}
	if resHi.Verdict == TLE {
		t.Fatalf("resHi.Verdict = TLE, want non-TLE since runtime(%v) <= hi", sub.wallSeconds)
	}
}

// runtime == hi => res_hi is not TLE.
func TestThreeLimitBoundaryAtHi(t *testing.T) {
	tc, ov := newTestCaseFixture(t)
	sub := &fakeSubmission{wallSeconds: 6}
	res, _, resHi := tc.RunSubmission(context.Background(), ov, sub, "sub", nil, 3, 1, 6)
	if resHi.Verdict == TLE {
		t.Fatalf("resHi.Verdict = TLE, want non-TLE at runtime==hi")
	}
	if res.Verdict != TLE {
		t.Fatalf("res.Verdict = %v, want TLE since runtime(%v) > timelim(3)", res.Verdict, sub.wallSeconds)
	}
}

// runtime > hi => TLE at every limit.
func TestThreeLimitBoundaryBeyondHi(t *testing.T) {
	tc, ov := newTestCaseFixture(t)
	sub := &fakeSubmission{wallSeconds: 10}
	res, resLo, resHi := tc.RunSubmission(context.Background(), ov, sub, "sub", nil, 3, 1, 6)
	if res.Verdict != TLE || resLo.Verdict != TLE || resHi.Verdict != TLE {
		t.Fatalf("got res=%v resLo=%v resHi=%v, want all TLE beyond hi", res.Verdict, resLo.Verdict, resHi.Verdict)
	}
}

// Cache coherence: repeating the identical (submission, args, limits) probe
// against the same case returns a byte-identical verdict/runtime without
// re-invoking the submission program.
func TestRunSubmissionCacheCoherence(t *testing.T) {
	tc, ov := newTestCaseFixture(t)
	sub := &fakeSubmission{wallSeconds: 0.5}

	first, _, _ := tc.RunSubmission(context.Background(), ov, sub, "sub", nil, 3, 1, 6)

	sub.wallSeconds = 99 // would flip the verdict if the cache were bypassed
	second, _, _ := tc.RunSubmission(context.Background(), ov, sub, "sub", nil, 3, 1, 6)

	if first.Verdict != second.Verdict || first.Runtime != second.Runtime {
		t.Fatalf("cache incoherent: first=%+v second=%+v", first, second)
	}
}

// Alias soundness: a symlinked case resolves to its target's cache entry
// under an identical probe, reporting the same verdict.
func TestAliasResolvesToTargetCache(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/a.in", []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir+"/a.ans", []byte("42\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("a.in", dir+"/b.in"); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("a.ans", dir+"/b.ans"); err != nil {
		t.Fatal(err)
	}

	diag := NewRunDiagnostics(zerolog.Nop(), false, false, 15)
	env := &ProblemEnv{
		RunID:            "test",
		Dir:              dir,
		DataDir:          dir,
		TmpDir:           t.TempDir(),
		Config:           &ProblemConfig{Validation: "default"},
		Diag:             diag,
		Log:              zerolog.Nop(),
		OutputValidators: []Program{&fakeValidator{}},
		infileIndex:      map[string]*TestCase{},
		Cache:            NewMemoryResultCache(),
	}
	group := &TestGroup{
		ProblemAspect: NewProblemAspect(diag, "secret"),
		env:           env,
		Name:          "secret",
		resolved:      &resolvedGroupConfig{Aggregation: "min"},
	}
	env.Root = group

	a := NewTestCase(env, group, dir+"/a")
	b := NewTestCase(env, group, dir+"/b")

	sub := &fakeSubmission{wallSeconds: 0.5}
	resA, _, _ := a.RunSubmission(context.Background(), ov(env), sub, "sub", nil, 3, 1, 6)
	resB, _, _ := b.RunSubmission(context.Background(), ov(env), sub, "sub", nil, 3, 1, 6)

	if resA.Verdict != resB.Verdict {
		t.Fatalf("alias verdict = %v, target verdict = %v, want equal", resB.Verdict, resA.Verdict)
	}
	if resB.Testcase != b.Base {
		t.Fatalf("alias result Testcase = %q, want stamped to alias's own base %q", resB.Testcase, b.Base)
	}
}

func ov(env *ProblemEnv) *OutputValidatorDriver {
	return NewOutputValidatorDriver(env, nil)
}

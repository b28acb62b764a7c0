package core

import (
	"testing"

	"github.com/rs/zerolog"
)

func newTestGroup(t *testing.T, isScoring bool, aggregation string, maxScore *float64) *TestGroup {
	t.Helper()
	diag := NewRunDiagnostics(zerolog.Nop(), false, false, 15)
	env := &ProblemEnv{Config: &ProblemConfig{IsScoring: isScoring}, Diag: diag}
	g := &TestGroup{
		ProblemAspect: NewProblemAspect(diag, "testgroup"),
		env:           env,
		Name:          "group",
		resolved:      &resolvedGroupConfig{Aggregation: aggregation, MaxScore: maxScore},
	}
	return g
}

func scored(v Verdict, score float64) *SubmissionResult {
	s := score
	return &SubmissionResult{Verdict: v, Score: &s, ACRuntime: -1}
}

// Concrete scenario 1: scoring, min-group, one WA drags the whole group to
// the minimum score and to the first non-AC verdict.
func TestAggregateScoringMinGroupOneWA(t *testing.T) {
	g := newTestGroup(t, true, "min", nil)
	children := []*SubmissionResult{
		scored(AC, 1.0),
		scored(WA, 0.0),
		scored(AC, 1.0),
	}
	agg := g.Aggregate(children)
	if agg.Verdict != WA {
		t.Fatalf("verdict = %v, want WA", agg.Verdict)
	}
	if agg.Score == nil || *agg.Score != 0.0 {
		t.Fatalf("score = %v, want 0.0", agg.Score)
	}
}

// Concrete scenario 2: scoring, sum-group, partial — some but not all
// children AC/PAC still elevates the aggregate verdict to AC, and the score
// is the sum of the children's scores.
func TestAggregateScoringSumGroupPartial(t *testing.T) {
	g := newTestGroup(t, true, "sum", nil)
	children := []*SubmissionResult{
		scored(AC, 0.4),
		scored(WA, 0.0),
		scored(PAC, 0.3),
	}
	agg := g.Aggregate(children)
	if agg.Verdict != AC {
		t.Fatalf("verdict = %v, want AC (elevated, some but not all accepted)", agg.Verdict)
	}
	if agg.Score == nil || *agg.Score != 0.7 {
		t.Fatalf("score = %v, want 0.7", agg.Score)
	}
}

func TestAggregateScoringSumGroupAllAC(t *testing.T) {
	g := newTestGroup(t, true, "sum", nil)
	children := []*SubmissionResult{scored(AC, 0.5), scored(AC, 0.5)}
	agg := g.Aggregate(children)
	if agg.Verdict != AC {
		t.Fatalf("verdict = %v, want AC", agg.Verdict)
	}
	if agg.Score == nil || *agg.Score != 1.0 {
		t.Fatalf("score = %v, want 1.0", agg.Score)
	}
}

func TestAggregateScoringSumGroupNoneAccepted(t *testing.T) {
	g := newTestGroup(t, true, "sum", nil)
	children := []*SubmissionResult{scored(WA, 0.0), scored(RTE, 0.0)}
	agg := g.Aggregate(children)
	if agg.Verdict != WA {
		t.Fatalf("verdict = %v, want WA (first child's verdict, none accepted)", agg.Verdict)
	}
}

// Pass/fail mode (not scoring): aggregate verdict is the first non-AC
// child's verdict, or AC if every child is AC.
func TestAggregatePassFailMinGroup(t *testing.T) {
	g := newTestGroup(t, false, "min", nil)
	allAC := []*SubmissionResult{scored(AC, 1), scored(AC, 1)}
	if got := g.Aggregate(allAC).Verdict; got != AC {
		t.Fatalf("verdict = %v, want AC", got)
	}

	oneWA := []*SubmissionResult{scored(AC, 1), scored(WA, 0), scored(AC, 1)}
	if got := g.Aggregate(oneWA).Verdict; got != WA {
		t.Fatalf("verdict = %v, want WA", got)
	}
}

// A JE anywhere in the children short-circuits the aggregate to JE,
// regardless of position or any later AC children.
func TestAggregateJEShortCircuits(t *testing.T) {
	g := newTestGroup(t, true, "sum", nil)
	children := []*SubmissionResult{
		scored(AC, 0.5),
		{Verdict: JE, Reason: "validator crashed", ACRuntime: -1},
		scored(AC, 0.5),
	}
	agg := g.Aggregate(children)
	if agg.Verdict != JE {
		t.Fatalf("verdict = %v, want JE", agg.Verdict)
	}
	if agg.Reason != "validator crashed" {
		t.Fatalf("reason = %q, want %q", agg.Reason, "validator crashed")
	}
}

func TestAggregateMaxScoreExceededErrors(t *testing.T) {
	max := 1.0
	g := newTestGroup(t, true, "sum", &max)
	children := []*SubmissionResult{scored(AC, 0.8), scored(AC, 0.8)}
	agg := g.Aggregate(children)
	if agg.Score == nil || *agg.Score != 1.6 {
		t.Fatalf("score = %v, want 1.6", agg.Score)
	}
	if g.env.Diag.ErrorCount() == 0 {
		t.Fatalf("expected an error for score exceeding max_score")
	}
}

func TestAggregateRuntimeIsWorstChild(t *testing.T) {
	g := newTestGroup(t, false, "sum", nil)
	children := []*SubmissionResult{
		{Verdict: AC, Runtime: 0.5, RuntimeTestcase: "a", ACRuntime: -1},
		{Verdict: AC, Runtime: 1.5, RuntimeTestcase: "b", ACRuntime: -1},
		{Verdict: AC, Runtime: 0.2, RuntimeTestcase: "c", ACRuntime: -1},
	}
	agg := g.Aggregate(children)
	if agg.Runtime != 1.5 || agg.RuntimeTestcase != "b" {
		t.Fatalf("runtime = %v/%q, want 1.5/\"b\"", agg.Runtime, agg.RuntimeTestcase)
	}
}

func TestGetMaxScoreSumAndMin(t *testing.T) {
	half := 0.5
	sumGroup := newTestGroup(t, true, "sum", nil)
	minGroup := newTestGroup(t, true, "min", nil)

	sumGroup.Children = []*TestGroup{
		{resolved: &resolvedGroupConfig{Aggregation: "sum", Score: &half}, Cases: []*TestCase{{}}},
		{resolved: &resolvedGroupConfig{Aggregation: "sum", Score: &half}, Cases: []*TestCase{{}}},
	}
	if got := sumGroup.GetMaxScore(); got != 1.0 {
		t.Fatalf("sum GetMaxScore = %v, want 1.0", got)
	}

	one := 1.0
	minGroup.Children = []*TestGroup{
		{resolved: &resolvedGroupConfig{Aggregation: "sum", Score: &one}, Cases: []*TestCase{{}}},
		{resolved: &resolvedGroupConfig{Aggregation: "sum", Score: &half}, Cases: []*TestCase{{}}},
	}
	if got := minGroup.GetMaxScore(); got != 0.5 {
		t.Fatalf("min GetMaxScore = %v, want 0.5", got)
	}
}

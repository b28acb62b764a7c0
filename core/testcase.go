package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// TestCase is one (input, answer) pair (C5): a base path B, consuming
// B.in/B.ans. It owns per-case execution, caching, and symlink-alias reuse.
type TestCase struct {
	ProblemAspect

	env   *ProblemEnv
	Group *TestGroup

	Base    string // path without extension
	Infile  string // Base + ".in"
	Ansfile string // Base + ".ans"

	// IsSample is true iff this case lives under the top-level "sample"
	// subgroup.
	IsSample bool

	// alias is non-nil when Infile is a symlink resolved to another
	// TestCase's Infile (a reuse alias); run_submission then delegates to
	// alias's cache without touching this case's own state.
	alias *TestCase
}

// NewTestCase constructs a case at base path (without extension) under
// group. Alias resolution happens lazily on the first RunSubmission call,
// after the full tree is built; a case adds its own .in to env.infileIndex
// only at that point, so an alias resolves only to a target that has
// already been run.
func NewTestCase(env *ProblemEnv, group *TestGroup, base string) *TestCase {
	name := filepath.Base(base)
	tc := &TestCase{
		env:     env,
		Group:   group,
		Base:    base,
		Infile:  base + ".in",
		Ansfile: base + ".ans",
	}
	tc.ProblemAspect = NewProblemAspect(env.Diag, name)
	return tc
}

func (c *TestCase) displayName() string { return c.Base }

// resolveAlias determines whether c.Infile is a symlink whose target is
// another already-registered test case's .in file. Per spec.md §3 a valid
// alias requires: (1) the target also ends in .in, (2) the sibling
// <target>.ans exists and equals the link target of c.Ansfile, (3) the
// target lies inside the package's data tree, (4) the aliased case's group
// has identical output-validator flags. If those hold, c.alias is set and
// future calls delegate to it; otherwise c registers itself in the index
// and behaves as an ordinary case.
func (c *TestCase) resolveAlias() {
	if c.alias != nil {
		return
	}
	info, err := os.Lstat(c.Infile)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		c.registerSelf()
		return
	}
	linkTarget, err := os.Readlink(c.Infile)
	if err != nil || !strings.HasSuffix(linkTarget, ".in") {
		c.registerSelf()
		return
	}
	targetAbs := linkTarget
	if !filepath.IsAbs(targetAbs) {
		targetAbs = filepath.Join(filepath.Dir(c.Infile), linkTarget)
	}
	resolved, err := filepath.EvalSymlinks(targetAbs)
	if err != nil {
		c.registerSelf()
		return
	}
	if !strings.HasPrefix(resolved, filepath.Clean(c.env.DataDir)+string(os.PathSeparator)) {
		c.registerSelf()
		return
	}
	target, ok := c.env.lookupInfile(resolved)
	if !ok {
		c.registerSelf()
		return
	}
	ansLink, ansErr := os.Readlink(c.Ansfile)
	wantAns := strings.TrimSuffix(linkTarget, ".in") + ".ans"
	if ansErr != nil || ansLink != wantAns {
		c.Error("alias %s has mismatched .ans symlink", c.Base)
		c.registerSelf()
		return
	}
	if c.Group.resolvedConfig().OutputValidatorFlags != target.Group.resolvedConfig().OutputValidatorFlags {
		c.Error("alias %s points to a case in a group with different output_validator_flags", c.Base)
		c.registerSelf()
		return
	}
	c.alias = target
}

func (c *TestCase) registerSelf() {
	resolved, err := filepath.EvalSymlinks(c.Infile)
	if err != nil {
		resolved = c.Infile
	}
	c.env.registerInfile(resolved, c)
}

// RunSubmission runs this case against sub under the three-limit probe
// (timelim, lo, hi), returning (res, res_lo, res_hi). Results are cached by
// (submission, args, timelim, lo, hi); aliases delegate to their target's
// cache without re-executing anything.
func (c *TestCase) RunSubmission(ctx context.Context, ov *OutputValidatorDriver, sub Program, submissionID string, args []string, timelim, lo, hi float64) (res, resLo, resHi *SubmissionResult) {
	c.resolveAlias()
	if c.alias != nil {
		r, rl, rh := c.alias.RunSubmission(ctx, ov, sub, submissionID, args, timelim, lo, hi)
		return c.stampCopies(r, rl, rh)
	}

	key := CacheKey{Submission: submissionID, Args: strings.Join(args, "\x1f"), Timelim: timelim, Lo: lo, Hi: hi}
	if cached, ok := c.env.Cache.Get(c.Base, key); ok {
		return c.stampCopies(cached.Res, cached.ResLo, cached.ResHi)
	}

	resHi = c.runOnce(ctx, ov, sub, args, hi+1)

	r := resHi.Runtime
	switch {
	case r <= lo:
		resLo = resHi
		res = resHi
	case r <= timelim:
		resLo = &SubmissionResult{Verdict: TLE, ACRuntime: -1}
		res = resHi
	case resHi.ValidatorFirst && resHi.Verdict == WA:
		resLo = &SubmissionResult{Verdict: WA, ACRuntime: -1}
		resHi.Runtime = lo
		res = &SubmissionResult{Verdict: WA, ValidatorFirst: true, ACRuntime: -1, Runtime: lo}
	default:
		resLo = &SubmissionResult{Verdict: TLE, ACRuntime: -1}
		res = &SubmissionResult{Verdict: TLE, ACRuntime: -1}
	}

	for _, rr := range []*SubmissionResult{res, resLo, resHi} {
		rr.Testcase = c.Base
		rr.RuntimeTestcase = c.Base
		if rr.Score == nil && c.env.Config.IsScoring {
			if rr.Verdict == AC {
				v := c.Group.resolvedConfig().caseScore()
				rr.Score = &v
			} else {
				z := 0.0
				rr.Score = &z
			}
		}
		rr.SetACRuntime()
	}

	if c.IsSample && res.Verdict != AC {
		res.SampleFailures = append(res.SampleFailures, res)
	}

	c.env.Cache.Set(c.Base, key, CachedTriple{Res: res, ResLo: resLo, ResHi: resHi})
	return c.stampCopies(res, resLo, resHi)
}

// stampCopies shallow-copies each result (never mutating the cache entry)
// and re-stamps Testcase/RuntimeTestcase to this case, so that an alias
// reports itself rather than its target.
func (c *TestCase) stampCopies(res, resLo, resHi *SubmissionResult) (*SubmissionResult, *SubmissionResult, *SubmissionResult) {
	r, rl, rh := res.Clone(), resLo.Clone(), resHi.Clone()
	r.Testcase, rl.Testcase, rh.Testcase = c.Base, c.Base, c.Base
	r.RuntimeTestcase, rl.RuntimeTestcase, rh.RuntimeTestcase = c.Base, c.Base, c.Base
	return r, rl, rh
}

// runOnce performs the actual (non-aliased) execution at the given
// timelim, classifying the raw RunStatus per §4.1/§4.4.
func (c *TestCase) runOnce(ctx context.Context, ov *OutputValidatorDriver, sub Program, args []string, timelim float64) *SubmissionResult {
	if c.env.Config.Interactive {
		res := ov.ValidateInteractive(ctx, c, sub, timelim, &c.ProblemAspect)
		return res
	}

	outDir, _ := c.env.FeedbackDir("run")
	outPath := outDir + "/output"
	status, err := sub.Run(ctx, c.Infile, outPath, "", args, timelim, 0)
	if err != nil {
		return &SubmissionResult{Verdict: JE, Reason: err.Error(), ACRuntime: -1, Runtime: status.WallSeconds}
	}

	var res *SubmissionResult
	switch {
	case isTLE(status, false) || status.WallSeconds > timelim-1:
		res = &SubmissionResult{Verdict: TLE, ACRuntime: -1}
	case isRTE(status):
		res = &SubmissionResult{Verdict: RTE, ACRuntime: -1}
	default:
		globalFlags := strings.Fields(c.env.Config.ValidatorFlags)
		res = ov.Validate(ctx, c, outPath, globalFlags, c.env.Config.ValidationTime, c.env.Config.ValidationMemory)
	}
	res.Runtime = status.WallSeconds
	return res
}

func (c *TestCase) Error(format string, args ...any)  { c.ProblemAspect.Error(format, args...) }
func (c *TestCase) ErrorWithInfo(info, format string, args ...any) {
	c.ProblemAspect.ErrorWithInfo(info, format, args...)
}

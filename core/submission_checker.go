package core

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"regexp"
)

// verdictSpec pairs a directory-convention verdict with its on-disk name
// and whether at least one submission under it is mandatory.
type verdictSpec struct {
	Verdict  Verdict
	Dir      string
	Required bool
}

var submissionVerdicts = []verdictSpec{
	{AC, "accepted", true},
	{PAC, "partially_accepted", false},
	{WA, "wrong_answer", false},
	{RTE, "run_time_error", false},
	{TLE, "time_limit_exceeded", false},
}

var submissionNameRE = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*[a-zA-Z0-9](\.c\+\+)?$`)

// SubmissionSource is one discovered reference submission file.
type SubmissionSource struct {
	Verdict  Verdict
	Path     string
	Name     string
	Lang     string
	CodeSize int64
}

// SubmissionChecker is the Submission Checker (C7): runs every reference
// submission, infers time limits from the AC batch, and compares the
// observed verdict against the directory label.
type SubmissionChecker struct {
	ProblemAspect
	env          *ProblemEnv
	ov           *OutputValidatorDriver
	submissions  map[Verdict][]SubmissionSource
	submissionFilter *regexp.Regexp
}

func NewSubmissionChecker(env *ProblemEnv, ov *OutputValidatorDriver, submissionFilter *regexp.Regexp) *SubmissionChecker {
	sc := &SubmissionChecker{
		ProblemAspect:    NewProblemAspect(env.Diag, "submissions"),
		env:              env,
		ov:               ov,
		submissions:      map[Verdict][]SubmissionSource{},
		submissionFilter: submissionFilter,
	}
	srcDir := filepath.Join(env.Dir, "submissions")
	for _, spec := range submissionVerdicts {
		dir := filepath.Join(srcDir, spec.Dir)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !submissionNameRE.MatchString(e.Name()) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			info, err := e.Info()
			if err != nil {
				continue
			}
			sc.submissions[spec.Verdict] = append(sc.submissions[spec.Verdict], SubmissionSource{
				Verdict: spec.Verdict, Path: path, Name: e.Name(), Lang: langFromExt(e.Name()), CodeSize: info.Size(),
			})
		}
	}
	return sc
}

func langFromExt(name string) string {
	switch filepath.Ext(name) {
	case ".c":
		return "c"
	case ".cpp", ".cc", ".c++":
		return "cpp"
	case ".py":
		return "python"
	case ".java":
		return "java"
	default:
		return "cpp"
	}
}

// fullScoreFinite reports whether the package has a finite maximum score to
// compare against. It is true for every scoring problem, since
// GetMaxScore always yields a finite value; pass/fail problems never warn
// on "did not attain full score".
func (sc *SubmissionChecker) fullScoreFinite() bool {
	return sc.env.Config.IsScoring
}

func (sc *SubmissionChecker) fullyAccepted(res *SubmissionResult) bool {
	if res.Verdict != AC {
		return false
	}
	if !sc.env.Config.IsScoring {
		return true
	}
	return res.Score != nil && *res.Score == sc.env.Root.GetMaxScore()
}

// CheckSubmission runs one submission against the whole test-data tree
// under (timelim, lo, hi), then applies the decision matrix from spec.md
// §4.6.
func (sc *SubmissionChecker) CheckSubmission(ctx context.Context, sub Program, src SubmissionSource, expected Verdict, timelim, lo, hi float64) *SubmissionResult {
	desc := string(expected) + " submission " + src.Name
	partial := false
	effectiveLo := lo
	if expected == PAC {
		expected = AC
		partial = true
	} else {
		effectiveLo = timelim
	}

	res, resLo, resHi := sc.env.Root.RunSubmission(ctx, sc.ov, sub, src.Path, nil, timelim, effectiveLo, hi)

	if res.Verdict == AC && expected == AC && !partial && len(res.SampleFailures) > 0 {
		f := res.SampleFailures[0]
		sc.Warning("%s got %s on sample: %s", desc, f.Verdict, f.String())
	}

	scoreDiffers := (res.Score == nil) != (resHi.Score == nil)
	if !scoreDiffers && resLo.Score != nil && resHi.Score != nil {
		scoreDiffers = *resLo.Score != *resHi.Score
	}
	if resLo.Verdict != resHi.Verdict || scoreDiffers {
		sc.Warning("%s sensitive to time limit: limit of %.3g secs -> %s, limit of %.3g secs -> %s", desc, effectiveLo, resLo.String(), hi, resHi.String())
	}

	switch {
	case partial && sc.fullyAccepted(res):
		sc.Warning("%s got %s — consider moving out of partially_accepted", desc, res.String())
	case res.Verdict == expected:
		sc.Info("%s OK: %s", desc, res.String())
		if expected == AC && !partial && !sc.fullyAccepted(res) && sc.fullScoreFinite() {
			sc.Warning("%s did not attain full score", desc)
		}
	case resHi.Verdict == expected && !(partial && sc.fullyAccepted(resHi)):
		sc.Info("%s OK with extra time: %s", desc, resHi.String())
	default:
		sc.ErrorWithInfo(resHi.AdditionalInfo, "%s got %s", desc, res.String())
	}

	return res
}

// inferTimeLimit derives (timelim, lo, margin) from the slowest AC
// submission's runtime, per spec.md §4.6's inference formula.
func inferTimeLimit(maxRuntime, timeMultiplier, safetyMargin float64) (timelim, lo, margin float64) {
	exact := maxRuntime * timeMultiplier
	timelim = math.Max(1, math.Round(exact))
	lo = math.Max(1, math.Min(math.Round(exact/safetyMargin), timelim-1))
	margin = math.Max(timelim+1, math.Round(exact*safetyMargin))
	return timelim, lo, margin
}

// Check orchestrates the whole of C7: directory-required checks, the
// time-limit inference loop, and per-submission checking, in declared
// verdict order.
func (sc *SubmissionChecker) Check(ctx context.Context, newProgram func(lang, path string) Program, fixedTimelim *float64, codeLimitKB int) {
	timeMultiplier := sc.env.Config.TimeMultiplier
	safetyMargin := sc.env.Config.SafetyMargin

	timelimMarginLo := 300.0
	timelimMargin := 300.0
	timelim := 300.0

	if sc.env.Config.TimeForACSubmissions != nil {
		timelim = *sc.env.Config.TimeForACSubmissions
		timelimMargin = timelim
	}
	if fixedTimelim != nil {
		timelim = *fixedTimelim
		timelimMargin = math.Round(timelim * safetyMargin)
	}

	for _, spec := range submissionVerdicts {
		srcs := sc.submissions[spec.Verdict]
		if spec.Required && len(srcs) == 0 {
			sc.Error(`require at least one "%s" submission`, spec.Dir)
		}

		var runtimes []float64
		for _, src := range srcs {
			if sc.submissionFilter != nil && !sc.submissionFilter.MatchString(spec.Dir+"/"+src.Name) {
				continue
			}
			sc.Info("check %s submission %s", spec.Verdict, src.Name)

			if src.CodeSize > int64(codeLimitKB)*1024 {
				sc.Error("%s submission %s has size %.1f kiB, exceeds code size limit of %d kiB", spec.Verdict, src.Name, float64(src.CodeSize)/1024.0, codeLimitKB)
				continue
			}

			sub := newProgram(src.Lang, src.Path)
			ok, diag, err := sub.Compile(ctx)
			if err != nil || !ok {
				sc.ErrorWithInfo(diag, "compile error for %s submission %s", spec.Verdict, src.Name)
				continue
			}

			res := sc.CheckSubmission(ctx, sub, src, spec.Verdict, timelim, timelimMarginLo, timelimMargin)
			runtimes = append(runtimes, res.Runtime)
		}

		if spec.Verdict == AC {
			if len(runtimes) > 0 {
				maxRuntime := 0.0
				for _, r := range runtimes {
					if r > maxRuntime {
						maxRuntime = r
					}
				}
				timelim, timelimMarginLo, timelimMargin = inferTimeLimit(maxRuntime, timeMultiplier, safetyMargin)
				sc.Info("slowest AC runtime: %.3f, setting timelim to %g secs, safety margin to %g secs", maxRuntime, timelim, timelimMargin)
			}
			if fixedTimelim != nil && *fixedTimelim != timelim {
				sc.Info("solutions give timelim of %g seconds, but will use provided fixed limit of %g seconds instead", timelim, *fixedTimelim)
				timelim = *fixedTimelim
				timelimMargin = timelim * safetyMargin
			}
		}
	}
}

package core

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog"
)

// Parts names the checkable sections of a package, in the order the
// original tool lists them; -p/--parts restricts a run to a subset.
var Parts = []string{"config", "statement", "validators", "generators", "data", "submissions"}

func ValidPart(s string) bool {
	for _, p := range Parts {
		if p == s {
			return true
		}
	}
	return false
}

// CheckOptions configures one Problem.Check invocation; it carries the
// CLI's -p parts list, -s submission filter and -t fixed time limit. The
// other flags reach the run elsewhere: -b, -e and --max_additional_info via
// RunDiagnostics, -l via the logger, and -d via OpenProblem's dataFilter.
type CheckOptions struct {
	Parts            []string
	SubmissionFilter *regexp.Regexp
	FixedTimeLimit   *float64
}

// Problem is the top-level orchestrator (mirrors original_source's
// Problem): it owns the package-wide environment and every checker, and
// drives them in part order. Problem itself carries a ProblemAspect for
// problem-level diagnostics (missing directory, missing interactive
// coordinator, invalid shortname); every other diagnostic is raised by the
// component that owns it.
type Problem struct {
	ProblemAspect
	ShortName string
	Dir       string

	env *ProblemEnv

	statement   *StatementChecker
	attachments *AttachmentsChecker
	inputVal    *InputValidatorDriver
	outputVal   *OutputValidatorDriver
	generators  *GeneratorsChecker
	submissions *SubmissionChecker
}

// OpenProblem loads a package rooted at dir: the config, the compiled
// validators, and the full test-data tree. It mirrors original_source's
// Problem.__enter__ — callers must call Close to remove the scratch
// workspace.
func OpenProblem(ctx context.Context, dir string, diag *RunDiagnostics, log zerolog.Logger, goJudgeURL string, cache ResultCache, dataFilter *regexp.Regexp) (*Problem, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	shortName := filepath.Base(absDir)

	p := &Problem{ProblemAspect: NewProblemAspect(diag, shortName), ShortName: shortName, Dir: absDir}

	if _, err := os.Stat(absDir); err != nil {
		p.Error("problem directory %q not found", absDir)
		return p, nil
	}

	newProgram := newLocalProgramFactory()
	if goJudgeURL != "" {
		newProgram = newGoJudgeProgramFactory(goJudgeURL, log)
	}

	cfgAspect := NewProblemAspect(diag, "config")
	cfg := LoadProblemConfig(&cfgAspect, absDir, shortName)

	env, err := NewProblemEnv(absDir, cfg, diag, log, newProgram, cache)
	if err != nil {
		return nil, err
	}
	p.env = env

	p.statement = NewStatementChecker(diag, absDir)
	p.attachments = NewAttachmentsChecker(diag, absDir)
	p.generators = NewGeneratorsChecker(diag, absDir)

	env.InputValidators = compileValidators(ctx, env, filepath.Join(absDir, "input_format_validators"), NewProblemAspect(diag, "input format validators"))
	env.OutputValidators = compileValidators(ctx, env, filepath.Join(absDir, "output_validators"), NewProblemAspect(diag, "output validators"))

	var interactiveCoordinator Program
	if cfg.Interactive {
		if len(env.OutputValidators) == 0 {
			p.Error("interactive validation requires a compiled output validator acting as coordinator")
		} else {
			interactiveCoordinator = env.OutputValidators[0]
		}
	}

	p.inputVal = NewInputValidatorDriver(env)
	p.outputVal = NewOutputValidatorDriver(env, interactiveCoordinator)

	env.Root = LoadTestGroup(env, filepath.Join(absDir, "data"), nil, dataFilter)

	p.submissions = NewSubmissionChecker(env, p.outputVal, nil)

	return p, nil
}

// RunID is the opaque identifier assigned to this Problem's environment,
// suitable for correlating with a HistoryRepository record.
func (p *Problem) RunID() string {
	if p.env == nil {
		return ""
	}
	return p.env.RunID
}

// Close releases the scratch workspace. Safe to call on a Problem that
// failed to fully open.
func (p *Problem) Close() error {
	if p.env == nil {
		return nil
	}
	return p.env.Close()
}

// Check drives every requested part, returning (errors, warnings) the way
// original_source's Problem.check does, recovering from a bailOut panic at
// the top level so a -b/--bail_on_error run still returns cleanly.
func (p *Problem) Check(ctx context.Context, opts CheckOptions) (errs, warnings int) {
	if p.env == nil {
		return 1, 0
	}

	if !shortnameRE.MatchString(p.ShortName) {
		p.Error("invalid shortname %q (must be [a-z0-9]+)", p.ShortName)
	}

	parts := opts.Parts
	if len(parts) == 0 {
		parts = Parts
	}
	if opts.SubmissionFilter != nil {
		p.submissions.submissionFilter = opts.SubmissionFilter
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(bailOut); ok {
					return
				}
				panic(r)
			}
		}()

		allCases := p.env.Root.AllTestCases()
		allFlagSets := collectFlagSets(p.env.Root)

		for _, part := range parts {
			p.env.Log.Info().Str("part", part).Msg("checking")
			switch part {
			case "config":
				// config errors/warnings are raised eagerly by
				// LoadProblemConfig at open time; nothing further to do.
			case "statement":
				p.statement.Check()
				p.attachments.Check()
			case "validators":
				for _, c := range allCases {
					p.inputVal.Validate(ctx, c)
				}
				p.inputVal.SanityCheck(ctx, allFlagSets, allCases)
			case "generators":
				p.generators.Check()
			case "data":
				// structural checks already happened in LoadTestGroup;
				// nothing further to run here.
			case "submissions":
				submissionProgram := func(lang, path string) Program {
					return p.env.NewProgram(lang, path, p.env.TmpDir)
				}
				p.submissions.Check(ctx, submissionProgram, opts.FixedTimeLimit, p.env.Config.CodeLimitKB)
			}
		}
	}()

	return p.env.Diag.ErrorCount(), p.env.Diag.WarningCount()
}

// collectFlagSets gathers every distinct input_validator_flags string
// present anywhere in the tree, for the sanity fuzzer to exercise.
func collectFlagSets(g *TestGroup) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(*TestGroup)
	walk = func(n *TestGroup) {
		flags := n.resolvedConfig().InputValidatorFlags
		if !seen[flags] {
			seen[flags] = true
			out = append(out, flags)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(g)
	return out
}

// localLangCommands mirrors gjLangConfigs' compile/run argv tables, adapted
// for direct host execution via LocalRunner instead of a go-judge sandbox.
var localLangCommands = map[string]struct {
	compileArgv func(workdir string) []string
	runArgv     func(workdir string) []string
}{
	"c": {
		compileArgv: func(wd string) []string { return []string{"gcc", "-O2", "-o", wd + "/a.out", wd + "/src.c"} },
		runArgv:     func(wd string) []string { return []string{wd + "/a.out"} },
	},
	"cpp": {
		compileArgv: func(wd string) []string { return []string{"g++", "-O2", "-std=gnu++17", "-o", wd + "/a.out", wd + "/src.cpp"} },
		runArgv:     func(wd string) []string { return []string{wd + "/a.out"} },
	},
	"python": {
		compileArgv: func(wd string) []string { return nil },
		runArgv:     func(wd string) []string { return []string{"python3", wd + "/src.py"} },
	},
	"java": {
		compileArgv: func(wd string) []string { return []string{"javac", "-d", wd, wd + "/Main.java"} },
		runArgv:     func(wd string) []string { return []string{"java", "-cp", wd, "Main"} },
	},
}

// newLocalProgramFactory returns the default, sandbox-free Program
// constructor: each (lang, source, workdir) gets its own LocalRunner that
// copies source into workdir under the language's expected filename before
// compiling, so os/exec can be pointed at a fixed path regardless of the
// original submission filename.
func newLocalProgramFactory() func(lang, source, workdir string) Program {
	return func(lang, source, workdir string) Program {
		cmds, ok := localLangCommands[lang]
		if !ok {
			cmds = localLangCommands["cpp"]
		}
		stagedName := stagedSourceName(lang)
		staged := filepath.Join(workdir, stagedName)
		_ = copyFile(source, staged)
		return &LocalRunner{
			CompileCmd: cmds.compileArgv(workdir),
			RunArgv:    cmds.runArgv(workdir),
			Dir:        workdir,
		}
	}
}

func stagedSourceName(lang string) string {
	switch lang {
	case "c":
		return "src.c"
	case "python":
		return "src.py"
	case "java":
		return "Main.java"
	default:
		return "src.cpp"
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// newGoJudgeProgramFactory builds Programs that execute through a go-judge
// sandbox endpoint instead of the host, for production-grade isolation.
func newGoJudgeProgramFactory(baseURL string, log zerolog.Logger) func(lang, source, workdir string) Program {
	return func(lang, source, workdir string) Program {
		data, err := os.ReadFile(source)
		if err != nil {
			data = nil
		}
		return NewGoJudgeRunner(baseURL, lang, string(data), log)
	}
}

func compileValidators(ctx context.Context, env *ProblemEnv, dir string, aspect ProblemAspect) []Program {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var progs []Program
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lang := langFromExt(e.Name())
		src := filepath.Join(dir, e.Name())
		prog := env.NewProgram(lang, src, env.TmpDir)
		ok, out, err := prog.Compile(ctx)
		if err != nil || !ok {
			aspect.ErrorWithInfo(out, "failed to compile %s", src)
			continue
		}
		progs = append(progs, prog)
	}
	return progs
}

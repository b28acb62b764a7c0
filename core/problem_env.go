package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ProblemEnv is the Problem Environment (C2): it owns the package config,
// the configured limits, the tmp workspace for this run, the compiled
// validators, and the testcase-by-infile index used for symlink-alias
// dedup. It is the arena referred to by the "cyclic references" design
// note — TestCase and TestGroup hold a pointer to it instead of a
// back-pointer to the Problem, so no component points back at Problem.
// Cases and groups still point at each other (TestCase.Group,
// TestGroup.Parent/Children/Cases).
type ProblemEnv struct {
	RunID   string
	Dir     string // package root
	DataDir string // Dir/data
	TmpDir  string // scratch workspace for this run, deleted on Close

	Config *ProblemConfig
	Diag   *RunDiagnostics
	Log    zerolog.Logger

	// NewProgram builds a Program for the given language/source, delegating
	// to either a GoJudgeRunner or a LocalRunner depending on how the
	// environment was constructed.
	NewProgram func(lang, source, workdir string) Program

	// InputValidators/OutputValidators are compiled once at load time.
	InputValidators  []Program
	OutputValidators []Program

	// infileIndex maps an absolute, resolved (non-symlink) .in path to the
	// TestCase that owns it, used to validate and resolve reuse aliases.
	infileIndex map[string]*TestCase

	Cache ResultCache

	Root *TestGroup
}

// NewProblemEnv creates the run-scoped environment: allocates a fresh tmp
// workspace (mkdtemp-style) under os.TempDir, mirroring the original's
// Problem.__enter__. Callers must call Close to remove it, mirroring
// __exit__.
func NewProblemEnv(dir string, cfg *ProblemConfig, diag *RunDiagnostics, log zerolog.Logger, newProgram func(lang, source, workdir string) Program, cache ResultCache) (*ProblemEnv, error) {
	runID := uuid.NewString()
	tmp, err := os.MkdirTemp("", "probcheck-"+filepath.Base(dir)+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch workspace: %w", err)
	}
	if cache == nil {
		cache = NewMemoryResultCache()
	}
	return &ProblemEnv{
		RunID:       runID,
		Dir:         dir,
		DataDir:     filepath.Join(dir, "data"),
		TmpDir:      tmp,
		Config:      cfg,
		Diag:        diag,
		Log:         log,
		NewProgram:  newProgram,
		infileIndex: map[string]*TestCase{},
		Cache:       cache,
	}, nil
}

// Close removes the tmp workspace. Safe to call multiple times.
func (e *ProblemEnv) Close() error {
	if e.TmpDir == "" {
		return nil
	}
	err := os.RemoveAll(e.TmpDir)
	e.TmpDir = ""
	return err
}

// FeedbackDir allocates a fresh, empty feedback directory under the tmp
// workspace for one output-validator invocation.
func (e *ProblemEnv) FeedbackDir(prefix string) (string, error) {
	return os.MkdirTemp(e.TmpDir, prefix+"-")
}

// registerInfile indexes a non-alias test case's resolved .in path so later
// cases can resolve symlink aliases against it.
func (e *ProblemEnv) registerInfile(resolved string, tc *TestCase) {
	e.infileIndex[resolved] = tc
}

// lookupInfile resolves a symlink target to the TestCase that owns it, if
// any is registered.
func (e *ProblemEnv) lookupInfile(resolved string) (*TestCase, bool) {
	tc, ok := e.infileIndex[resolved]
	return tc, ok
}

package core

import (
	"os"
	"path/filepath"
	"regexp"
)

// statementFileRE matches problem_statement/problem[.<lang>].tex.
var statementFileRE = regexp.MustCompile(`^problem(\.([a-z]{2}))?\.tex$`)

// StatementChecker covers the structural checks original_source's
// ProblemStatement performs: presence and naming of problem_statement/
// sources, without attempting PDF/HTML rendering (out of scope per
// spec.md §1).
type StatementChecker struct {
	ProblemAspect
	dir        string
	Languages  []string
}

func NewStatementChecker(diag *RunDiagnostics, problemdir string) *StatementChecker {
	s := &StatementChecker{ProblemAspect: NewProblemAspect(diag, "problem statement"), dir: filepath.Join(problemdir, "problem_statement")}
	return s
}

func (s *StatementChecker) Check() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.Error("missing problem_statement directory")
		return
	}
	haveDefault := false
	langs := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := statementFileRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if m[2] == "" {
			haveDefault = true
		} else {
			langs[m[2]] = true
		}
	}
	if haveDefault && len(langs) > 0 {
		s.Error("cannot supply both problem.tex and a language-tagged problem.<lang>.tex")
	}
	if !haveDefault && len(langs) == 0 {
		s.Error("no problem statement found under problem_statement/")
	}
	for l := range langs {
		s.Languages = append(s.Languages, l)
	}
}

// AttachmentsChecker covers original_source's Attachments: directories are
// not allowed as attachment entries.
type AttachmentsChecker struct {
	ProblemAspect
	dir   string
	Files []string
}

func NewAttachmentsChecker(diag *RunDiagnostics, problemdir string) *AttachmentsChecker {
	a := &AttachmentsChecker{ProblemAspect: NewProblemAspect(diag, "attachments"), dir: filepath.Join(problemdir, "attachments")}
	entries, err := os.ReadDir(a.dir)
	if err == nil {
		for _, e := range entries {
			a.Files = append(a.Files, filepath.Join(a.dir, e.Name()))
		}
	}
	return a
}

func (a *AttachmentsChecker) Check() {
	for _, f := range a.Files {
		info, err := os.Stat(f)
		if err == nil && info.IsDir() {
			a.Error("directories are not allowed as attachments (%s is a directory)", f)
		}
	}
}

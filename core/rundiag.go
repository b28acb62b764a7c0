package core

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// bailOut is the sentinel panic value used to unwind to the verification
// entry point when bail-on-error is enabled. Recovered only by Problem.Check.
type bailOut struct{ reason string }

// RunDiagnostics is the run-scoped replacement for the original tool's
// process-global error/warning counters. One instance is created per
// Problem.Check invocation and threaded explicitly into every component;
// nothing here is package-level mutable state.
type RunDiagnostics struct {
	log                 zerolog.Logger
	bailOnError         bool
	werror              bool
	maxAdditionalInfo   int
	errorCount          int
	warningCount        int
}

// NewRunDiagnostics builds a fresh, zeroed diagnostics handle for one run.
func NewRunDiagnostics(log zerolog.Logger, bailOnError, werror bool, maxAdditionalInfo int) *RunDiagnostics {
	if maxAdditionalInfo < 0 {
		maxAdditionalInfo = 15
	}
	return &RunDiagnostics{
		log:               log,
		bailOnError:       bailOnError,
		werror:            werror,
		maxAdditionalInfo: maxAdditionalInfo,
	}
}

func (d *RunDiagnostics) ErrorCount() int   { return d.errorCount }
func (d *RunDiagnostics) WarningCount() int { return d.warningCount }

func (d *RunDiagnostics) truncate(additionalInfo string) string {
	if additionalInfo == "" || d.maxAdditionalInfo == 0 {
		return ""
	}
	lines := strings.Split(additionalInfo, "\n")
	if len(lines) <= d.maxAdditionalInfo {
		return additionalInfo
	}
	kept := lines[:d.maxAdditionalInfo]
	return strings.Join(kept, "\n") + fmt.Sprintf("\n[%d more lines truncated]", len(lines)-d.maxAdditionalInfo)
}

// ProblemAspect is the shared diagnostic surface composed (not inherited)
// into every judging-engine component: C2 through C7 all embed one. It
// mirrors the original's error/warning/info/debug/check_basename discipline
// without reintroducing a class hierarchy.
type ProblemAspect struct {
	diag        *RunDiagnostics
	displayName string
}

func NewProblemAspect(diag *RunDiagnostics, displayName string) ProblemAspect {
	return ProblemAspect{diag: diag, displayName: displayName}
}

func (a *ProblemAspect) DisplayName() string { return a.displayName }

// Error records a fatal-weight diagnostic. If bail-on-error is set, it
// panics with the bailOut sentinel to unwind to the run's entry point;
// otherwise it returns normally and the caller's check continues.
func (a *ProblemAspect) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.diag.errorCount++
	a.diag.log.Error().Str("component", a.displayName).Msg(msg)
	if a.diag.bailOnError {
		panic(bailOut{reason: fmt.Sprintf("%s: %s", a.displayName, msg)})
	}
}

// ErrorWithInfo is Error plus a truncated additional_info blob (validator
// output, stack trace) logged at debug level.
func (a *ProblemAspect) ErrorWithInfo(additionalInfo string, format string, args ...any) {
	info := a.diag.truncate(additionalInfo)
	a.diag.log.Debug().Str("component", a.displayName).Str("additional_info", info).Msg("additional info")
	a.Error(format, args...)
}

// Warning records a recoverable diagnostic. In werror mode it is promoted to
// an Error (and so can still trigger bail-on-error).
func (a *ProblemAspect) Warning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if a.diag.werror {
		a.Error("%s", msg)
		return
	}
	a.diag.warningCount++
	a.diag.log.Warn().Str("component", a.displayName).Msg(msg)
}

func (a *ProblemAspect) Info(format string, args ...any) {
	a.diag.log.Info().Str("component", a.displayName).Msg(fmt.Sprintf(format, args...))
}

func (a *ProblemAspect) Debug(format string, args ...any) {
	a.diag.log.Debug().Str("component", a.displayName).Msg(fmt.Sprintf(format, args...))
}

// CheckBasename enforces basenameRE, i.e. ^[A-Za-z0-9][A-Za-z0-9_.-]*[A-Za-z0-9]$ on name,
// emitting an error (via a.Error) if it does not match. Single-character
// names are accepted (first/last char classes overlap).
func (a *ProblemAspect) CheckBasename(path string) {
	name := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		name = path[idx+1:]
	}
	if !basenameRE.MatchString(name) {
		a.Error("invalid identifier %q (expected ^[A-Za-z0-9][A-Za-z0-9_.-]*[A-Za-z0-9]$)", name)
	}
}

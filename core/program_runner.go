package core

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// RunStatus is the POSIX wait-status classification the core is allowed to
// perform directly: whether the child exited cleanly, its exit code, and
// whether it was killed by a signal (and which one). Every Program
// implementation is responsible for producing this normalized view; the one
// place the core decodes raw wait(2) bits itself is the status words the
// interactive coordinator prints (decodeWaitStatus).
type RunStatus struct {
	Exited     bool // WIFEXITED
	ExitCode   int  // WEXITSTATUS, meaningful only if Exited
	Signaled   bool // WIFSIGNALED
	Signal     syscall.Signal
	WallSeconds float64
}

// isTLE reports whether status should classify as a time-limit-exceeded
// wait outcome: signaled with SIGXCPU, or (when allowUsr1 is set, as the
// interactive coordinator requires) signaled with SIGUSR1.
func isTLE(status RunStatus, allowUsr1 bool) bool {
	if !status.Signaled {
		return false
	}
	if status.Signal == syscall.SIGXCPU {
		return true
	}
	return allowUsr1 && status.Signal == syscall.SIGUSR1
}

// isRTE reports whether status should classify as a runtime-error wait
// outcome: the process did not exit cleanly, or exited with a nonzero code.
func isRTE(status RunStatus) bool {
	if !status.Exited {
		return true
	}
	return status.ExitCode != 0
}

// signalFromNumber converts a raw POSIX signal number (as reported by the
// interactive coordinator's wait-status encoding) into a syscall.Signal.
func signalFromNumber(n int) syscall.Signal {
	return syscall.Signal(n)
}

// Program is the external contract the judging engine consumes for every
// compiled artifact it needs to run: input validators, output validators,
// the interactive coordinator, and reference submissions alike. Concrete
// implementations own sandboxing; the core only calls these three methods
// and interprets their RunStatus via isTLE/isRTE.
type Program interface {
	// Compile builds the program; ok is false with a diagnostic on failure.
	Compile(ctx context.Context) (ok bool, diagnostic string, err error)
	// Run executes the program with the given stdin, capturing stdout and
	// (if stderrPath != "") stderr, under the given wall-clock time limit
	// (seconds) and memory limit (MB). args are appended after RunCmd().
	Run(ctx context.Context, stdinPath, stdoutPath, stderrPath string, args []string, timelim float64, memlimMB int) (RunStatus, error)
	// RunCmd returns the command vector that Run would execute, for
	// components (the interactive coordinator) that need to build their own
	// argv rather than have Run construct one.
	RunCmd(memlimMB int) []string
}

// LocalRunner is the default, sandbox-free Program implementation: it
// compiles and runs programs directly via os/exec on the host. It exists so
// the module is runnable out of the box; production use is expected to
// supply a real sandboxing Program (see GoJudgeRunner) via ProblemEnv.
type LocalRunner struct {
	// CompileCmd, when non-empty, is run in Dir before every Compile call
	// (e.g. []string{"g++", "-O2", "-o", "a.out", "main.cpp"}).
	CompileCmd []string
	// RunArgv is the command vector used for Run/RunCmd (e.g.
	// []string{"./a.out"} or []string{"/usr/bin/python3", "main.py"}).
	RunArgv []string
	Dir     string
}

func (r *LocalRunner) Compile(ctx context.Context) (bool, string, error) {
	if len(r.CompileCmd) == 0 {
		return true, "", nil
	}
	cmd := exec.CommandContext(ctx, r.CompileCmd[0], r.CompileCmd[1:]...)
	cmd.Dir = r.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return false, out.String(), nil
	}
	return true, out.String(), nil
}

func (r *LocalRunner) RunCmd(memlimMB int) []string {
	return append([]string(nil), r.RunArgv...)
}

func (r *LocalRunner) Run(ctx context.Context, stdinPath, stdoutPath, stderrPath string, args []string, timelim float64, memlimMB int) (RunStatus, error) {
	deadline := time.Duration(timelim * float64(time.Second))
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	argv := append(r.RunCmd(memlimMB), args...)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir

	if stdinPath != "" {
		in, err := os.Open(stdinPath)
		if err != nil {
			return RunStatus{}, err
		}
		defer in.Close()
		cmd.Stdin = in
	}
	var outFile, errFile *os.File
	if stdoutPath != "" {
		f, err := os.Create(stdoutPath)
		if err != nil {
			return RunStatus{}, err
		}
		defer f.Close()
		outFile = f
		cmd.Stdout = f
	}
	if stderrPath != "" {
		f, err := os.Create(stderrPath)
		if err != nil {
			return RunStatus{}, err
		}
		defer f.Close()
		errFile = f
		cmd.Stderr = f
	}
	_ = outFile
	_ = errFile

	start := time.Now()
	runErr := cmd.Run()
	wall := time.Since(start).Seconds()

	status := RunStatus{WallSeconds: wall}
	if runCtx.Err() == context.DeadlineExceeded {
		status.Signaled = true
		status.Signal = syscall.SIGXCPU
		return status, nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			status.Signaled = ws.Signaled()
			if status.Signaled {
				status.Signal = ws.Signal()
			}
			status.Exited = ws.Exited()
			status.ExitCode = ws.ExitStatus()
			return status, nil
		}
		status.Exited = true
		status.ExitCode = exitErr.ExitCode()
		return status, nil
	}
	if runErr != nil {
		return status, runErr
	}
	status.Exited = true
	status.ExitCode = 0
	return status, nil
}

package core

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// OutputValidatorDriver is the Output Validator Driver (C4): runs output
// validators non-interactively against a captured submission output, or
// coordinates an interactive session between validator and submission.
type OutputValidatorDriver struct {
	ProblemAspect
	env *ProblemEnv
	// interactiveCoordinator is the external "interactive" helper program;
	// nil when the package is not interactive.
	interactiveCoordinator Program
}

func NewOutputValidatorDriver(env *ProblemEnv, interactiveCoordinator Program) *OutputValidatorDriver {
	return &OutputValidatorDriver{
		ProblemAspect:          NewProblemAspect(env.Diag, "output validators"),
		env:                    env,
		interactiveCoordinator: interactiveCoordinator,
	}
}

func (d *OutputValidatorDriver) actualValidators() []Program {
	if d.env.Config.Validation == "default" {
		// No bundled default validator is supplied: in default mode the
		// driver uses the same OutputValidators as in custom mode, i.e. the
		// programs OpenProblem compiled from output_validators/.
		return d.env.OutputValidators
	}
	return d.env.OutputValidators
}

func feedbackText(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var parts []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if len(b) > 128*1024 {
			b = b[:128*1024]
		}
		parts = append(parts, "=== "+e.Name()+": ===", string(b))
	}
	return strings.Join(parts, "\n")
}

func (d *OutputValidatorDriver) parseValidatorStatus(status RunStatus, feedbackDir string) *SubmissionResult {
	customScore := d.env.Config.CustomScoring
	scoreFile := filepath.Join(feedbackDir, "score.txt")
	_, scoreFileErr := os.Stat(scoreFile)
	scoreFileExists := scoreFileErr == nil

	if !customScore && scoreFileExists {
		return &SubmissionResult{Verdict: JE, Reason: `validator produced "score.txt" but problem does not have custom scoring activated`, ACRuntime: -1}
	}
	if !status.Exited {
		return &SubmissionResult{Verdict: JE, Reason: "output validator crashed", AdditionalInfo: feedbackText(feedbackDir), ACRuntime: -1}
	}
	ret := status.ExitCode
	if ret != 42 && ret != 43 {
		return &SubmissionResult{Verdict: JE, Reason: "output validator exited with status " + strconv.Itoa(ret), AdditionalInfo: feedbackText(feedbackDir), ACRuntime: -1}
	}
	if ret == 43 {
		return &SubmissionResult{Verdict: WA, AdditionalInfo: feedbackText(feedbackDir), ACRuntime: -1}
	}

	var score *float64
	if customScore {
		if !scoreFileExists {
			return &SubmissionResult{Verdict: JE, Reason: `problem has custom scoring but validator did not produce "score.txt"`, ACRuntime: -1}
		}
		b, err := os.ReadFile(scoreFile)
		if err != nil {
			return &SubmissionResult{Verdict: JE, Reason: "failed to read validator score: " + err.Error(), ACRuntime: -1}
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
		if err != nil {
			return &SubmissionResult{Verdict: JE, Reason: "failed to parse validator score: " + err.Error(), ACRuntime: -1}
		}
		score = &f
	}
	return &SubmissionResult{Verdict: AC, Score: score, ACRuntime: -1}
}

// Validate runs the non-interactive output-validator path: for each
// compiled validator in OutputValidators, invoke with args
// [infile, ansfile, feedbackdir, globalFlags..., groupFlags...]; on the
// first non-AC result, return immediately.
func (d *OutputValidatorDriver) Validate(ctx context.Context, c *TestCase, outputPath string, globalFlags []string, validationTime float64, validationMemMB int) *SubmissionResult {
	res := &SubmissionResult{Verdict: JE, ACRuntime: -1}
	groupFlags := strings.Fields(c.Group.resolvedConfig().OutputValidatorFlags)
	args := append(append([]string{c.Infile, c.Ansfile, ""}, globalFlags...), groupFlags...)

	for _, v := range d.actualValidators() {
		if v == nil {
			continue
		}
		if ok, _, _ := v.Compile(ctx); !ok {
			continue
		}
		feedbackDir, err := d.env.FeedbackDir("feedback")
		if err != nil {
			continue
		}
		args[2] = feedbackDir + string(os.PathSeparator)
		status, err := v.Run(ctx, outputPath, "", "", args, validationTime, validationMemMB)
		if err != nil {
			res = &SubmissionResult{Verdict: JE, Reason: "output validator crashed: " + err.Error(), ACRuntime: -1}
		} else {
			res = d.parseValidatorStatus(status, feedbackDir)
		}
		os.RemoveAll(feedbackDir)
		if res.Verdict != AC {
			return res
		}
	}
	return res
}

var interactiveOutputRE = regexp.MustCompile(`^\d+ \d+\.\d+ \d+ \d+\.\d+ (validator|submission)`)

// ValidateInteractive coordinates an interactive session: the coordinator
// program is invoked with [fd_count="1", wall_limit=2*timelim, <validator
// argv> infile ansfile feedbackdir/, ";", <submission argv>], and reports a
// single status line the driver parses per the five-field format.
func (d *OutputValidatorDriver) ValidateInteractive(ctx context.Context, c *TestCase, submission Program, timelim float64, errorHandler *ProblemAspect) *SubmissionResult {
	res := &SubmissionResult{Verdict: JE, ACRuntime: -1}
	if d.interactiveCoordinator == nil {
		errorHandler.Error("could not locate interactive runner")
		return res
	}

	groupFlags := strings.Fields(c.Group.resolvedConfig().OutputValidatorFlags)
	_ = groupFlags

	for _, val := range d.actualValidators() {
		if val == nil {
			continue
		}
		if ok, _, _ := val.Compile(ctx); !ok {
			continue
		}
		feedbackDir, err := d.env.FeedbackDir("feedback")
		if err != nil {
			continue
		}
		validatorArgs := append(val.RunCmd(0), c.Infile, c.Ansfile, feedbackDir+string(os.PathSeparator))
		submissionArgs := submission.RunCmd(0)

		initArgs := []string{"1", formatFloat(2 * timelim)}
		argv := append(append(append([]string{}, initArgs...), validatorArgs...), ";")
		argv = append(argv, submissionArgs...)

		outPath := feedbackDir + string(os.PathSeparator) + "interactive.out"
		status, runErr := d.interactiveCoordinator.Run(ctx, "", outPath, "", argv, 0, 0)
		if runErr != nil || isRTE(status) {
			errorHandler.Error("interactive crashed")
			os.RemoveAll(feedbackDir)
			continue
		}

		outputBytes, _ := os.ReadFile(outPath)
		output := strings.TrimSpace(string(outputBytes))
		if !interactiveOutputRE.MatchString(output) {
			errorHandler.Error("output from interactive does not follow expected format, got output %q", output)
			os.RemoveAll(feedbackDir)
			continue
		}

		fields := strings.Fields(output)
		valStatusCode, _ := strconv.Atoi(fields[0])
		subStatusCode, _ := strconv.Atoi(fields[2])
		subRuntime, _ := strconv.ParseFloat(fields[3], 64)
		firstExiter := fields[4]

		valStatus := decodeWaitStatus(valStatusCode)
		subStatus := decodeWaitStatus(subStatusCode)

		valJE := !valStatus.Exited || (valStatus.ExitCode != 42 && valStatus.ExitCode != 43)
		valWA := valStatus.Exited && valStatus.ExitCode == 43

		switch {
		case valJE || (valWA && firstExiter == "validator"):
			if subRuntime > timelim {
				subRuntime = timelim
			}
			res = d.parseValidatorStatus(valStatus, feedbackDir)
		case isTLE(subStatus, true):
			res = &SubmissionResult{Verdict: TLE, ACRuntime: -1}
		case isRTE(subStatus):
			res = &SubmissionResult{Verdict: RTE, ACRuntime: -1}
		default:
			res = d.parseValidatorStatus(valStatus, feedbackDir)
		}
		res.Runtime = subRuntime
		res.ValidatorFirst = firstExiter == "validator"

		os.RemoveAll(feedbackDir)
		if res.Verdict != AC {
			return res
		}
	}
	return res
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// decodeWaitStatus turns the raw numeric status the interactive coordinator
// reports for each side back into a RunStatus, matching the original's use
// of os.WIFEXITED/os.WEXITSTATUS on the same integer. The coordinator
// reports a POSIX wait(2) status word: low byte nonzero => signaled (low
// 7 bits are the signal number), else the high byte is the exit code.
func decodeWaitStatus(raw int) RunStatus {
	low := raw & 0x7f
	if low == 0 {
		return RunStatus{Exited: true, ExitCode: (raw >> 8) & 0xff}
	}
	return RunStatus{Signaled: true, Signal: signalFromNumber(low)}
}

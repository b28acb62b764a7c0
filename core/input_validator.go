package core

import (
	"context"
	"math/rand"
	"os"
	"regexp"
	"strings"
)

// junkCase is one of the four fixed junk inputs fed to every input
// validator as a baseline sanity check.
type junkCase struct {
	desc string
	data []byte
}

const printable = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~ \t\n\r\x0b\x0c"

func randomJunk(n int, src *rand.Rand) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = printable[src.Intn(len(printable))]
	}
	return out
}

func junkCases(src *rand.Rand) []junkCase {
	binary := make([]byte, 256)
	for i := range binary {
		binary[i] = byte(i)
	}
	ascii := make([]byte, 0, 95)
	for i := 32; i < 127; i++ {
		ascii = append(ascii, byte(i))
	}
	return []junkCase{
		{"an empty file", nil},
		{"a binary file with byte values 0 up to 256", binary},
		{"a text file with the ASCII characters 32 up to 127", ascii},
		{"a random text file with printable ASCII characters", randomJunk(200, src)},
	}
}

// junkModification is one of the five input mutations applied to actual
// package inputs during the sanity fuzzer.
type junkModification struct {
	desc       string
	applicable func(string) bool
	modify     func(string, *rand.Rand) string
}

var (
	wsRE          = regexp.MustCompile(`\s`)
	newlineRE     = regexp.MustCompile(`\n`)
	leadingZeroRE = regexp.MustCompile(`(^|[^.]\b)([0-9]+)\b`)
	trailingZeroRE = regexp.MustCompile(`\.[0-9]+\b`)
)

func junkModifications() []junkModification {
	return []junkModification{
		{
			desc:       "spaces added where there already is whitespace",
			applicable: func(s string) bool { return wsRE.MatchString(s) },
			modify: func(s string, r *rand.Rand) string {
				return wsRE.ReplaceAllStringFunc(s, func(m string) string {
					return m + strings.Repeat(" ", 1+r.Intn(5))
				})
			},
		},
		{
			desc:       "newlines added where there already are newlines",
			applicable: func(s string) bool { return newlineRE.MatchString(s) },
			modify: func(s string, r *rand.Rand) string {
				return newlineRE.ReplaceAllStringFunc(s, func(m string) string {
					return strings.Repeat("\n", 2+r.Intn(4))
				})
			},
		},
		{
			desc:       "leading zeros added to integers",
			applicable: func(s string) bool { return leadingZeroRE.MatchString(s) },
			modify: func(s string, r *rand.Rand) string {
				return leadingZeroRE.ReplaceAllString(s, "${1}0000000000${2}")
			},
		},
		{
			desc:       "trailing zeros added to real number decimal portion",
			applicable: func(s string) bool { return trailingZeroRE.MatchString(s) },
			modify: func(s string, r *rand.Rand) string {
				return trailingZeroRE.ReplaceAllStringFunc(s, func(m string) string { return m + "0000000000" })
			},
		},
		{
			desc:       "random junk added to the end of the file",
			applicable: func(string) bool { return true },
			modify: func(s string, r *rand.Rand) string {
				return s + string(randomJunk(200, r))
			},
		},
	}
}

// InputValidatorDriver is the Input Validator Driver (C3).
type InputValidatorDriver struct {
	ProblemAspect
	env *ProblemEnv
	rng *rand.Rand
}

func NewInputValidatorDriver(env *ProblemEnv) *InputValidatorDriver {
	return &InputValidatorDriver{
		ProblemAspect: NewProblemAspect(env.Diag, "input format validators"),
		env:           env,
		rng:           rand.New(rand.NewSource(1)),
	}
}

// Validate runs every compiled input validator on c.Infile with the case's
// group-level input_validator_flags. Any non-42 exit (or crash) is a leaf
// error with captured stdout/stderr attached.
func (d *InputValidatorDriver) Validate(ctx context.Context, c *TestCase) {
	flags := strings.Fields(c.Group.resolvedConfig().InputValidatorFlags)
	for _, v := range d.env.InputValidators {
		stdout, _ := d.env.FeedbackDir("ivout")
		stderr, _ := d.env.FeedbackDir("iverr")
		outPath := stdout + "/out"
		errPath := stderr + "/err"
		status, err := v.Run(ctx, c.Infile, outPath, errPath, flags, 0, 0)
		if err != nil {
			c.Error("input validator crashed on input %s: %v", c.Infile, err)
			continue
		}
		if !status.Exited {
			outB, _ := os.ReadFile(outPath)
			errB, _ := os.ReadFile(errPath)
			c.ErrorWithInfo(joinNonEmpty(string(outB), string(errB)), "input format validator crashed on input %s", c.Infile)
			continue
		}
		if status.ExitCode != 42 {
			outB, _ := os.ReadFile(outPath)
			errB, _ := os.ReadFile(errPath)
			c.ErrorWithInfo(joinNonEmpty(string(outB), string(errB)), "input format validator did not accept input %s, exit code: %d", c.Infile, status.ExitCode)
		}
	}
}

// SanityCheck is the junk/mutation fuzzer: it feeds the four fixed junk
// inputs, and five mutations of real package inputs, through every
// validator under every flag-set observed in the tree, warning whenever no
// validator rejects something that isn't actually valid input.
func (d *InputValidatorDriver) SanityCheck(ctx context.Context, allFlagSets []string, allCases []*TestCase) {
	if len(d.env.InputValidators) == 0 {
		return
	}
	tmp, err := d.env.FeedbackDir("sanity")
	if err != nil {
		return
	}
	junkPath := tmp + "/junk"

	for _, jc := range junkCases(d.rng) {
		if err := os.WriteFile(junkPath, jc.data, 0o644); err != nil {
			continue
		}
		for _, flagStr := range allFlagSets {
			flags := strings.Fields(flagStr)
			rejected := false
			for _, v := range d.env.InputValidators {
				status, err := v.Run(ctx, junkPath, "", "", flags, 0, 0)
				if err != nil || !status.Exited || status.ExitCode != 42 {
					rejected = true
					break
				}
			}
			if !rejected {
				d.Warning("no validator rejects %s with flags %q", jc.desc, flagStr)
			}
		}
	}

	for _, jm := range junkModifications() {
		applied := false
		for _, c := range allCases {
			data, err := os.ReadFile(c.Infile)
			if err != nil {
				continue
			}
			text := string(data)
			if !jm.applicable(text) {
				continue
			}
			mutated := jm.modify(text, d.rng)
			if err := os.WriteFile(junkPath, []byte(mutated), 0o644); err != nil {
				continue
			}
			applied = true
			accepted := true
			for _, flagStr := range allFlagSets {
				flags := strings.Fields(flagStr)
				for _, v := range d.env.InputValidators {
					status, err := v.Run(ctx, junkPath, "", "", flags, 0, 0)
					if err != nil || !status.Exited || status.ExitCode != 42 {
						accepted = false
						break
					}
				}
				if !accepted {
					break
				}
			}
			if accepted {
				d.Warning("no validator rejects %s", jm.desc)
			}
			break
		}
		_ = applied
	}
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

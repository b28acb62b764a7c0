package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// validLicenses mirrors the original's _VALID_LICENSES set.
var validLicenses = map[string]bool{
	"unknown": true, "public domain": true, "cc0": true, "cc by": true,
	"cc by-sa": true, "educational": true, "permission": true,
}

// GradingConfig is the grading block of problem.yaml / testdata.yaml:
// `grading: { score, aggregation, max_score }` from spec.md §3.
type GradingConfig struct {
	Score       *float64 `yaml:"score"`
	Aggregation string   `yaml:"aggregation"`
	MaxScore    *float64 `yaml:"max_score"`
}

// rawProblemYAML is the on-disk shape of problem.yaml.
type rawProblemYAML struct {
	Name             map[string]string `yaml:"name"`
	NameScalar       string            `yaml:"-"`
	Author           string            `yaml:"author"`
	Source           string            `yaml:"source"`
	SourceURL        string            `yaml:"source_url"`
	License          string            `yaml:"license"`
	RightsOwner      string            `yaml:"rights_owner"`
	Type             string            `yaml:"type"`
	Validation       string            `yaml:"validation"`
	ValidatorFlags   string            `yaml:"validator_flags"`
	Languages        string            `yaml:"languages"`
	Limits           rawLimits         `yaml:"limits"`
	Grading          GradingConfig     `yaml:"grading"`
}

type rawLimits struct {
	TimeMultiplier       *float64 `yaml:"time_multiplier"`
	SafetyMargin         *float64 `yaml:"time_safety_margin"`
	TimeLimit            *float64 `yaml:"time_limit"`
	TimeForACSubmissions *float64 `yaml:"time_for_AC_submissions"`
	CodeLimitKB          *int     `yaml:"code_limit_kB"`
	ValidationTime       *float64 `yaml:"validation_time"`
	ValidationMemory     *int     `yaml:"validation_memory"`
}

// ProblemConfig is the resolved, materialized configuration for a package:
// defaults merged with problem.yaml at load time, per the "materialize, do
// not lazily look up" design note.
type ProblemConfig struct {
	ShortName   string
	Name        map[string]string
	Author      string
	Source      string
	SourceURL   string
	License     string
	RightsOwner string

	// IsScoring is true iff problem.yaml's "type" is "scoring"; a pass/fail
	// problem never populates Score on its results.
	IsScoring bool

	// Validation is the whole validation string: "default", or "custom"
	// optionally followed by tokens; ValidationTypes holds the
	// space-separated tokens after "custom" (e.g. "score", "interactive").
	Validation      string
	ValidationTypes []string
	CustomScoring   bool
	Interactive     bool

	Languages      []string
	ValidatorFlags string

	TimeMultiplier       float64
	SafetyMargin         float64
	FixedTimeLimit       *float64
	TimeForACSubmissions *float64
	CodeLimitKB          int

	// ValidationTime/ValidationMemory bound each output-validator
	// invocation (seconds / MB); unlike the submission's own timelim, these
	// are fixed, not inferred, since the validator is trusted reference
	// code rather than the thing under test.
	ValidationTime   float64
	ValidationMemory int

	Grading GradingConfig
}

// LoadProblemConfig reads and validates problemdir/problem.yaml, applying
// the original's _MANDATORY_CONFIG/_OPTIONAL_CONFIG defaults and
// cross-field checks (rights_owner/license, source/source_url).
func LoadProblemConfig(a *ProblemAspect, problemdir, shortName string) *ProblemConfig {
	cfg := &ProblemConfig{
		ShortName:        shortName,
		Validation:       "default",
		TimeMultiplier:   5,
		SafetyMargin:     2,
		CodeLimitKB:      256,
		ValidationTime:   60,
		ValidationMemory: 1024,
		Grading:          GradingConfig{Aggregation: "sum"},
	}

	path := filepath.Join(problemdir, "problem.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		a.Error("missing or unreadable problem.yaml: %v", err)
		return cfg
	}

	var raw rawProblemYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		a.Error("malformed problem.yaml: %v", err)
		return cfg
	}

	if !shortnameRE.MatchString(shortName) {
		a.Error("problem shortname %q does not match ^[a-z0-9]+$", shortName)
	}

	cfg.IsScoring = raw.Type == "scoring"
	cfg.Name = raw.Name
	cfg.Author = raw.Author
	cfg.Source = raw.Source
	cfg.SourceURL = raw.SourceURL
	cfg.License = firstNonEmpty(raw.License, "unknown")
	cfg.RightsOwner = raw.RightsOwner

	if !validLicenses[strings.ToLower(cfg.License)] {
		a.Error("invalid license %q", cfg.License)
	}
	if cfg.RightsOwner == "" && cfg.License != "public domain" && cfg.License != "unknown" {
		a.Error("rights_owner required unless license is 'public domain' or 'unknown'")
	}
	if cfg.SourceURL != "" && cfg.Source == "" {
		a.Error("source_url given without source")
	}

	cfg.Languages = parseCSV(strings.ReplaceAll(raw.Languages, " ", ","))
	cfg.ValidatorFlags = raw.ValidatorFlags

	cfg.Validation = firstNonEmpty(raw.Validation, "default")
	fields := strings.Fields(cfg.Validation)
	if len(fields) > 0 && fields[0] == "custom" {
		cfg.ValidationTypes = fields[1:]
		for _, t := range cfg.ValidationTypes {
			switch t {
			case "score":
				cfg.CustomScoring = true
			case "interactive":
				cfg.Interactive = true
			default:
				a.Error("unknown validation parameter %q", t)
			}
		}
	} else if cfg.Validation != "default" {
		a.Error("unknown validation mode %q", cfg.Validation)
	}

	if raw.Limits.TimeMultiplier != nil {
		cfg.TimeMultiplier = *raw.Limits.TimeMultiplier
	}
	if raw.Limits.SafetyMargin != nil {
		cfg.SafetyMargin = *raw.Limits.SafetyMargin
	}
	cfg.FixedTimeLimit = raw.Limits.TimeLimit
	cfg.TimeForACSubmissions = raw.Limits.TimeForACSubmissions
	if raw.Limits.CodeLimitKB != nil {
		cfg.CodeLimitKB = *raw.Limits.CodeLimitKB
	}
	if raw.Limits.ValidationTime != nil {
		cfg.ValidationTime = *raw.Limits.ValidationTime
	}
	if raw.Limits.ValidationMemory != nil {
		cfg.ValidationMemory = *raw.Limits.ValidationMemory
	}

	cfg.Grading = raw.Grading
	if cfg.Grading.Aggregation == "" {
		cfg.Grading.Aggregation = "sum"
	}
	if cfg.Grading.Aggregation != "sum" && cfg.Grading.Aggregation != "min" {
		a.Error("aggregation must be 'sum' or 'min', got %q", cfg.Grading.Aggregation)
	}
	if cfg.Grading.Score != nil && cfg.Validation == "default" && !cfg.CustomScoring {
		a.Warning("scoring fields given for a pass/fail problem")
	}

	return cfg
}

func (c *ProblemConfig) String() string {
	return fmt.Sprintf("ProblemConfig{%s}", c.ShortName)
}

// Command verifyproblem validates a problem package in the Kattis problem
// format: config, statement, validators, generators, test data, and
// reference submissions, in that order.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"probcheck/core"
)

func main() {
	var (
		submissionFilter = flag.String("s", ".*", "run only submissions whose name matches this regex")
		dataFilter       = flag.String("d", ".*", "use only data files whose name matches this regex")
		fixedTimelim     = flag.Float64("t", 0, "use this fixed time limit instead of inferring one from AC submissions")
		parts            = flag.String("p", strings.Join(core.Parts, ","), "comma-separated list of parts to check: "+strings.Join(core.Parts, ", "))
		bailOnError      = flag.Bool("b", false, "bail verification on first error")
		werror           = flag.Bool("e", false, "consider warnings as errors")
		logLevel         = flag.String("l", "warning", "log level (debug, info, warning, error, critical)")
		maxAdditionalInfo = flag.Int("max_additional_info", 15, "maximum lines of additional info to display about an error (0 disables)")
		cacheBackend     = flag.String("cache-backend", "memory", "result cache backend: memory or redis")
		recordDB         = flag.Bool("record-db", false, "persist this run's outcomes to the history database")
		goJudgeURL       = flag.String("gojudge-url", "", "go-judge sandbox base URL (empty uses the local, unsandboxed runner)")
	)
	flag.Parse()

	problemDirs := flag.Args()
	if len(problemDirs) == 0 {
		fmt.Fprintln(os.Stderr, "usage: verifyproblem [flags] problemdir [problemdir...]")
		os.Exit(2)
	}

	var requestedParts []string
	for _, p := range strings.Split(*parts, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !core.ValidPart(p) {
			fmt.Fprintf(os.Stderr, "invalid part %q (must be one of %s)\n", p, strings.Join(core.Parts, ", "))
			os.Exit(2)
		}
		requestedParts = append(requestedParts, p)
	}

	subRE, err := regexp.Compile(*submissionFilter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -s regex: %v\n", err)
		os.Exit(2)
	}
	dataRE, err := regexp.Compile(*dataFilter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -d regex: %v\n", err)
		os.Exit(2)
	}

	cfg := core.Load()
	cfg.LogLevel = *logLevel
	cfg.BailOnError = *bailOnError
	cfg.WError = *werror
	cfg.MaxAdditionalInfo = *maxAdditionalInfo
	cfg.CacheBackend = *cacheBackend
	cfg.RecordHistory = *recordDB
	if *goJudgeURL != "" {
		cfg.GoJudgeURL = *goJudgeURL
	}

	log, closer, err := core.SetupLogging(cfg, "verifyproblem.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx := context.Background()

	var fixedLimit *float64
	if *fixedTimelim > 0 {
		fixedLimit = fixedTimelim
	}

	totalErrors := 0
	for _, dir := range problemDirs {
		cache := buildCache(cfg)

		diag := core.NewRunDiagnostics(log, cfg.BailOnError, cfg.WError, cfg.MaxAdditionalInfo)
		prob, err := core.OpenProblem(ctx, dir, diag, log, cfg.GoJudgeURL, cache, dataRE)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open problem %q: %v\n", dir, err)
			totalErrors++
			continue
		}

		fmt.Printf("Loading problem %s\n", prob.ShortName)
		started := time.Now()
		errs, warnings := prob.Check(ctx, core.CheckOptions{
			Parts:            requestedParts,
			SubmissionFilter: subRE,
			FixedTimeLimit:   fixedLimit,
		})
		duration := time.Since(started)

		if cfg.RecordHistory {
			recordRun(ctx, cfg, prob, started, duration, errs, warnings)
		}
		prob.Close()

		fmt.Printf("%s tested: %d error%s, %d warning%s\n",
			prob.ShortName, errs, plural(errs), warnings, plural(warnings))
		totalErrors += errs
	}

	if totalErrors > 0 {
		os.Exit(1)
	}
}

// recordRun persists a completed check to the optional history database.
// Failures here are logged to stderr, never to the exit code: history is a
// reporting convenience, not part of the package's pass/fail contract.
func recordRun(ctx context.Context, cfg core.Config, prob *core.Problem, started time.Time, duration time.Duration, errs, warnings int) {
	pool, err := core.NewHistoryPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "record-db: failed to connect: %v\n", err)
		return
	}
	defer pool.Close()

	repo := core.NewPgHistoryRepository(pool)
	run := core.RunRecord{
		RunID:        prob.RunID(),
		ShortName:    prob.ShortName,
		StartedAt:    started,
		DurationMS:   duration.Milliseconds(),
		ErrorCount:   errs,
		WarningCount: warnings,
		Passed:       errs == 0,
	}
	if err := repo.RecordRun(ctx, run, nil); err != nil {
		fmt.Fprintf(os.Stderr, "record-db: failed to record run: %v\n", err)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func buildCache(cfg core.Config) core.ResultCache {
	if cfg.CacheBackend != "redis" {
		return core.NewMemoryResultCache()
	}
	client, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to redis at %s, falling back to in-memory cache: %v\n", cfg.RedisURL, err)
		return core.NewMemoryResultCache()
	}
	return core.NewRedisResultCache(client, 0)
}

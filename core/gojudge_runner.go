package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// GoJudgeRunner is a Program implementation that delegates compilation and
// execution to a go-judge sandbox over its HTTP API, adapted from the
// teacher's HTTPJudgeClient: same request/response envelope, same
// lang-config table, generalized from "compile once, run many testcases for
// one submission" to the judging engine's Program contract (one Program per
// compiled artifact, reused across every case/validator invocation that
// needs it).
type GoJudgeRunner struct {
	client      *http.Client
	base        string
	lang        string
	source      string
	artifactID  string
	artifactKey string
	log         zerolog.Logger
}

func NewGoJudgeRunner(baseURL, lang, source string, log zerolog.Logger) *GoJudgeRunner {
	return &GoJudgeRunner{
		client: &http.Client{Timeout: 30 * time.Second},
		base:   baseURL,
		lang:   lang,
		source: source,
		log:    log,
	}
}

type gjFile struct {
	Name    string  `json:"name,omitempty"`
	Max     int     `json:"max,omitempty"`
	Content *string `json:"content,omitempty"`
	FileID  string  `json:"fileId,omitempty"`
}

type gjCommand struct {
	Args          []string          `json:"args"`
	Env           []string          `json:"env,omitempty"`
	Files         []gjFile          `json:"files"`
	CPULimit      int64             `json:"cpuLimit"`
	MemoryLimit   int64             `json:"memoryLimit"`
	ProcLimit     int32             `json:"procLimit"`
	CopyIn        map[string]gjFile `json:"copyIn,omitempty"`
	CopyOutCached []string          `json:"copyOutCached,omitempty"`
}

type gjResponse struct {
	Status     string            `json:"status"`
	Time       int64             `json:"time"`
	Memory     int64             `json:"memory"`
	ExitStatus int               `json:"exitStatus"`
	Error      string            `json:"error"`
	Files      map[string]string `json:"files"`
	FileIDs    map[string]string `json:"fileIds"`
}

type gjLangConfig struct {
	SourceName          string
	CompileArgs         []string
	CompileCopyOutCache []string
	ArtifactKey         string
	RunArgs             []string
}

var gjLangConfigs = map[string]gjLangConfig{
	"c": {
		SourceName:          "main.c",
		CompileArgs:         []string{"/usr/bin/gcc", "main.c", "-std=gnu17", "-O2", "-pipe", "-static", "-s", "-o", "main"},
		CompileCopyOutCache: []string{"main"},
		ArtifactKey:         "main",
		RunArgs:             []string{"./main"},
	},
	"cpp": {
		SourceName:          "main.cpp",
		CompileArgs:         []string{"/usr/bin/g++", "main.cpp", "-std=gnu++17", "-O2", "-pipe", "-s", "-o", "main"},
		CompileCopyOutCache: []string{"main"},
		ArtifactKey:         "main",
		RunArgs:             []string{"./main"},
	},
	"python": {
		SourceName:          "main.py",
		CompileArgs:         []string{"/usr/bin/python3", "-m", "py_compile", "main.py"},
		CompileCopyOutCache: []string{"main.py"},
		ArtifactKey:         "main.py",
		RunArgs:             []string{"/usr/bin/python3", "main.py"},
	},
	"java": {
		SourceName:          "Main.java",
		CompileArgs:         []string{"/bin/sh", "-c", "javac Main.java && jar cfe Main.jar Main *.class"},
		CompileCopyOutCache: []string{"Main.jar"},
		ArtifactKey:         "Main.jar",
		RunArgs:             []string{"/usr/bin/java", "-jar", "Main.jar"},
	},
}

func gjLangConfigFor(key string) gjLangConfig {
	k := strings.ToLower(strings.TrimSpace(key))
	if cfg, ok := gjLangConfigs[k]; ok {
		return cfg
	}
	return gjLangConfigs["cpp"]
}

func (r *GoJudgeRunner) post(ctx context.Context, cmd gjCommand) (*gjResponse, error) {
	payload := map[string]any{"cmd": []gjCommand{cmd}}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/run", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body []gjResponse
	if resp.StatusCode >= 300 {
		var textErr string
		_ = json.NewDecoder(resp.Body).Decode(&textErr)
		return nil, fmt.Errorf("go-judge returned status %d: %s", resp.StatusCode, textErr)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty go-judge response")
	}
	return &body[0], nil
}

// Compile builds the source once and caches the resulting artifact id for
// subsequent Run calls.
func (r *GoJudgeRunner) Compile(ctx context.Context) (bool, string, error) {
	if r.base == "" {
		return false, "", errors.New("go-judge url not configured")
	}
	cfg := gjLangConfigFor(r.lang)
	if len(cfg.CompileArgs) == 0 {
		// Interpreted language with no separate compile step: stage the
		// source as the artifact directly.
		r.artifactKey = cfg.SourceName
		return true, "", nil
	}

	cmd := gjCommand{
		Args:          cfg.CompileArgs,
		Env:           []string{"PATH=/usr/bin:/bin"},
		Files:         []gjFile{{Name: "stdout", Max: 10240}, {Name: "stderr", Max: 10240}},
		CPULimit:      20_000_000_000,
		MemoryLimit:   512 * 1024 * 1024,
		ProcLimit:     50,
		CopyIn:        map[string]gjFile{cfg.SourceName: {Content: &r.source}},
		CopyOutCached: cfg.CompileCopyOutCache,
	}
	r.log.Debug().Str("lang", r.lang).Msg("go-judge compile")

	resp, err := r.post(ctx, cmd)
	if err != nil {
		return false, "", err
	}
	diag := resp.Files["stdout"] + resp.Files["stderr"]
	if resp.Status != "Accepted" || resp.ExitStatus != 0 {
		return false, diag, nil
	}
	r.artifactKey = cfg.ArtifactKey
	if resp.FileIDs != nil {
		r.artifactID = resp.FileIDs[cfg.ArtifactKey]
	}
	return true, diag, nil
}

func (r *GoJudgeRunner) RunCmd(memlimMB int) []string {
	cfg := gjLangConfigFor(r.lang)
	return append([]string(nil), cfg.RunArgs...)
}

// Run executes the compiled artifact with stdin read from stdinPath,
// translating go-judge's status string into a RunStatus the core can
// classify with isTLE/isRTE.
func (r *GoJudgeRunner) Run(ctx context.Context, stdinPath, stdoutPath, stderrPath string, args []string, timelim float64, memlimMB int) (RunStatus, error) {
	if r.base == "" {
		return RunStatus{}, errors.New("go-judge url not configured")
	}
	cfg := gjLangConfigFor(r.lang)
	if memlimMB <= 0 {
		memlimMB = 256
	}
	cpuLimit := int64(timelim * 1e9)
	memLimit := int64(memlimMB) * 1024 * 1024

	var stdin string
	if stdinPath != "" {
		b, err := os.ReadFile(stdinPath)
		if err != nil {
			return RunStatus{}, err
		}
		stdin = string(b)
	}

	const stdoutLimit = 64 * 1024 * 1024
	files := []gjFile{
		{Content: &stdin},
		{Name: "stdout", Max: stdoutLimit},
		{Name: "stderr", Max: 10240},
	}

	copyIn := map[string]gjFile{}
	if r.artifactID != "" {
		copyIn[cfg.ArtifactKey] = gjFile{FileID: r.artifactID}
	} else {
		content := r.source
		copyIn[cfg.SourceName] = gjFile{Content: &content}
	}

	cmd := gjCommand{
		Args:        append(r.RunCmd(memlimMB), args...),
		Env:         []string{"PATH=/usr/bin:/bin"},
		Files:       files,
		CPULimit:    cpuLimit,
		MemoryLimit: memLimit,
		ProcLimit:   50,
		CopyIn:      copyIn,
	}

	resp, err := r.post(ctx, cmd)
	if err != nil {
		return RunStatus{}, err
	}

	status := RunStatus{WallSeconds: float64(resp.Time) / 1e9}
	switch resp.Status {
	case "Time Limit Exceeded":
		status.Signaled = true
		status.Signal = syscall.SIGXCPU
	case "Accepted":
		status.Exited = true
		status.ExitCode = resp.ExitStatus
	default:
		// Memory Limit Exceeded / Output Limit Exceeded / Runtime Error /
		// Nonzero Exit Status / Internal Error: treat as a clean exit
		// carrying the sandbox's exit status so isRTE's nonzero-exit
		// clause fires; memory and output limit outcomes are not told
		// apart from other failures and classify as RTE.
		status.Exited = true
		if resp.ExitStatus != 0 {
			status.ExitCode = resp.ExitStatus
		} else {
			status.ExitCode = 1
		}
	}

	if stdoutPath != "" {
		if out, ok := resp.Files["stdout"]; ok {
			_ = os.WriteFile(stdoutPath, []byte(out), 0o644)
		}
	}
	if stderrPath != "" {
		if errOut, ok := resp.Files["stderr"]; ok {
			_ = os.WriteFile(stderrPath, []byte(errOut), 0o644)
		}
	}
	return status, nil
}

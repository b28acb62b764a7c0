package core

import (
	"encoding/json"
	"fmt"
	"sync"
)

// CacheKey is the tuple spec.md §4.4 caches Test Case results under:
// (submission, args, timelim, lo, hi).
type CacheKey struct {
	Submission string
	Args       string
	Timelim    float64
	Lo         float64
	Hi         float64
}

func (k CacheKey) string() string {
	return fmt.Sprintf("%s\x00%s\x00%g\x00%g\x00%g", k.Submission, k.Args, k.Timelim, k.Lo, k.Hi)
}

// CachedTriple is the (res, res_lo, res_hi) triple a Test Case run produces.
type CachedTriple struct {
	Res, ResLo, ResHi *SubmissionResult
}

// ResultCache is the pluggable backend behind Test Case's result-reuse
// cache. The default is in-process (NewMemoryResultCache); an optional
// Redis-backed implementation (resultcache_redis.go) lets independent
// judge-farm shards share cached verdicts for the same fixed submission.
type ResultCache interface {
	Get(caseID string, key CacheKey) (CachedTriple, bool)
	Set(caseID string, key CacheKey, triple CachedTriple)
}

// MemoryResultCache is the default ResultCache: a process-local map guarded
// by a mutex. Per spec.md §5, a given cache entry is only ever written by
// the single-threaded core task that computed it, so the mutex exists for
// safety under a future concurrent driver, not because of any current
// concurrent access.
type MemoryResultCache struct {
	mu    sync.Mutex
	store map[string]CachedTriple
}

func NewMemoryResultCache() *MemoryResultCache {
	return &MemoryResultCache{store: map[string]CachedTriple{}}
}

func (c *MemoryResultCache) Get(caseID string, key CacheKey) (CachedTriple, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[caseID+"\x00"+key.string()]
	return v, ok
}

func (c *MemoryResultCache) Set(caseID string, key CacheKey, triple CachedTriple) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[caseID+"\x00"+key.string()] = triple
}

// serializedResult is the JSON-safe projection of a SubmissionResult used by
// the Redis-backed cache.
type serializedResult struct {
	Verdict           Verdict  `json:"verdict"`
	Score             *float64 `json:"score,omitempty"`
	Reason            string   `json:"reason,omitempty"`
	AdditionalInfo    string   `json:"additional_info,omitempty"`
	Testcase          string   `json:"testcase,omitempty"`
	Runtime           float64  `json:"runtime"`
	RuntimeTestcase   string   `json:"runtime_testcase,omitempty"`
	ACRuntime         float64  `json:"ac_runtime"`
	ACRuntimeTestcase string   `json:"ac_runtime_testcase,omitempty"`
	ValidatorFirst    bool     `json:"validator_first"`
}

func toSerialized(r *SubmissionResult) serializedResult {
	if r == nil {
		return serializedResult{ACRuntime: -1}
	}
	return serializedResult{
		Verdict: r.Verdict, Score: r.Score, Reason: r.Reason, AdditionalInfo: r.AdditionalInfo,
		Testcase: r.Testcase, Runtime: r.Runtime, RuntimeTestcase: r.RuntimeTestcase,
		ACRuntime: r.ACRuntime, ACRuntimeTestcase: r.ACRuntimeTestcase, ValidatorFirst: r.ValidatorFirst,
	}
}

func fromSerialized(s serializedResult) *SubmissionResult {
	return &SubmissionResult{
		Verdict: s.Verdict, Score: s.Score, Reason: s.Reason, AdditionalInfo: s.AdditionalInfo,
		Testcase: s.Testcase, Runtime: s.Runtime, RuntimeTestcase: s.RuntimeTestcase,
		ACRuntime: s.ACRuntime, ACRuntimeTestcase: s.ACRuntimeTestcase, ValidatorFirst: s.ValidatorFirst,
	}
}

type serializedTriple struct {
	Res   serializedResult `json:"res"`
	ResLo serializedResult `json:"resLo"`
	ResHi serializedResult `json:"resHi"`
}

func marshalTriple(t CachedTriple) ([]byte, error) {
	return json.Marshal(serializedTriple{
		Res:   toSerialized(t.Res),
		ResLo: toSerialized(t.ResLo),
		ResHi: toSerialized(t.ResHi),
	})
}

func unmarshalTriple(b []byte) (CachedTriple, error) {
	var s serializedTriple
	if err := json.Unmarshal(b, &s); err != nil {
		return CachedTriple{}, err
	}
	return CachedTriple{Res: fromSerialized(s.Res), ResLo: fromSerialized(s.ResLo), ResHi: fromSerialized(s.ResHi)}, nil
}

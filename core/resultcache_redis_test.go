package core

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisCache(t *testing.T) *RedisResultCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisResultCache(client, time.Minute)
}

func TestRedisResultCacheRoundTrip(t *testing.T) {
	cache := newTestRedisCache(t)

	score := 1.0
	key := CacheKey{Submission: "accepted/ac.cpp", Args: "", Timelim: 3, Lo: 1, Hi: 6}
	triple := CachedTriple{
		Res:   &SubmissionResult{Verdict: AC, Score: &score, Testcase: "secret/1"},
		ResLo: &SubmissionResult{Verdict: AC, Score: &score, Testcase: "secret/1"},
		ResHi: &SubmissionResult{Verdict: AC, Score: &score, Testcase: "secret/1"},
	}

	cache.Set("secret/1", key, triple)

	got, ok := cache.Get("secret/1", key)
	if !ok {
		t.Fatalf("expected cache hit after Set")
	}
	if got.Res.Verdict != AC || got.Res.Testcase != "secret/1" {
		t.Fatalf("unexpected cached result: %+v", got.Res)
	}
	if got.Res.Score == nil || *got.Res.Score != 1.0 {
		t.Fatalf("expected score 1.0, got %+v", got.Res.Score)
	}
}

func TestRedisResultCacheMiss(t *testing.T) {
	cache := newTestRedisCache(t)
	key := CacheKey{Submission: "accepted/ac.cpp", Timelim: 3, Lo: 1, Hi: 6}

	if _, ok := cache.Get("secret/nonexistent", key); ok {
		t.Fatalf("expected cache miss for unset key")
	}
}

func TestRedisResultCacheKeyIncludesLimits(t *testing.T) {
	cache := newTestRedisCache(t)
	score := 1.0
	triple := CachedTriple{Res: &SubmissionResult{Verdict: AC, Score: &score}}

	k1 := CacheKey{Submission: "a.cpp", Timelim: 3, Lo: 1, Hi: 6}
	k2 := CacheKey{Submission: "a.cpp", Timelim: 5, Lo: 1, Hi: 10}

	cache.Set("secret/1", k1, triple)
	if _, ok := cache.Get("secret/1", k2); ok {
		t.Fatalf("expected distinct limits to produce distinct cache entries")
	}
}

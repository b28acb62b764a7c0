package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReportService exposes already-computed check-run history over HTTP; it
// never triggers a run itself, it only reads what history_repository.go has
// recorded.
type ReportService struct {
	history HistoryRepository
}

func NewReportService(history HistoryRepository) *ReportService {
	return &ReportService{history: history}
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// Router builds the gin engine for cmd/reportserver: GET /healthz,
// GET /api/v1/runs/:run_id, GET /api/v1/problems/:short_name/runs.
func (s *ReportService) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})

	api := r.Group("/api/v1")
	{
		api.GET("/runs/:run_id", s.getRun)
		api.GET("/problems/:short_name/runs", s.listRuns)
	}
	return r
}

func (s *ReportService) getRun(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	runID := c.Param("run_id")
	run, outcomes, err := s.history.FindRun(ctx, runID)
	if err != nil {
		respondError(c, http.StatusNotFound, "run not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "submissions": outcomes})
}

func (s *ReportService) listRuns(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	shortName := c.Param("short_name")
	page := intQueryOr(c, "page", 1)
	perPage := intQueryOr(c, "per_page", 20)

	runs, total, err := s.history.ListRuns(ctx, shortName, page, perPage)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": total, "page": page, "per_page": perPage})
}

func intQueryOr(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n := def
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}

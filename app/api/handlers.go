package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"feedpipe/app/store"
)

const defaultSummaryListLimit = 50

func NewHandler(posts store.PostStore, summaries store.SummaryStore,
	queue QueueCounter, reports *ReportHolder, feedCount int) *Handler {
	return &Handler{
		posts:     posts,
		summaries: summaries,
		queue:     queue,
		reports:   reports,
		feedCount: feedCount,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"feeds":     h.feedCount,
	}

	if postCount, err := h.posts.CountPosts(c.Request.Context()); err == nil {
		health["posts"] = postCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	report, cycles := h.reports.Get()

	stats := map[string]interface{}{
		"poll_cycles": cycles,
		"last_cycle":  report,
	}

	if depth, err := h.queue.Depth(ctx); err == nil {
		stats["queue_depth"] = depth
	} else {
		slog.Error("Database error", "operation", "queue_depth", "error", err)
	}

	if dead, err := h.queue.DeadLetterCount(ctx); err == nil {
		stats["dead_lettered"] = dead
	} else {
		slog.Error("Database error", "operation", "dead_letter_count", "error", err)
	}

	if postCount, err := h.posts.CountPosts(ctx); err == nil {
		stats["posts"] = postCount
	}

	if summaryCount, err := h.summaries.Count(ctx); err == nil {
		stats["summaries"] = summaryCount
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListSummaries(c *gin.Context) {
	limit := defaultSummaryListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = parsed
	}

	records, err := h.summaries.List(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_summaries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"summaries": records,
		"total":     len(records),
	})
}

func (h *Handler) GetSummary(c *gin.Context) {
	postID := c.Param("post_id")
	if postID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing post id parameter"})
		return
	}

	record, err := h.summaries.Get(c.Request.Context(), postID)
	if err != nil {
		slog.Error("Database error", "operation", "get_summary", "post_id", postID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Summary not found"})
		return
	}

	c.JSON(http.StatusOK, record)
}

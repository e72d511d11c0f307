package api

import (
	"context"
	"sync"

	"feedpipe/app/poller"
	"feedpipe/app/store"
)

// QueueCounter is the slice of the fetch queue the stats endpoint needs.
type QueueCounter interface {
	Depth(ctx context.Context) (int, error)
	DeadLetterCount(ctx context.Context) (int, error)
}

// ReportHolder keeps the most recent poll cycle report for the stats
// endpoint. Written by the scheduler goroutine, read by HTTP handlers.
type ReportHolder struct {
	mu     sync.RWMutex
	report poller.Report
	cycles int
}

func (h *ReportHolder) Set(report poller.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.report = report
	h.cycles++
}

func (h *ReportHolder) Get() (poller.Report, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.report, h.cycles
}

type Handler struct {
	posts     store.PostStore
	summaries store.SummaryStore
	queue     QueueCounter
	reports   *ReportHolder
	feedCount int
}

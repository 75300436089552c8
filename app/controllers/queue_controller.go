package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clubops/supporter360/internal/pkg/eventqueue"
	"github.com/clubops/supporter360/internal/pkg/metrics/counter"
)

// QueueController exposes queue depths and status counters for operators.
type QueueController struct {
	queue *eventqueue.Queue
}

// NewQueueController creates a queue controller over the webhook job queue.
func NewQueueController(queue *eventqueue.Queue) *QueueController {
	return &QueueController{queue: queue}
}

// HandleStats returns pending/processing/dead-letter depths plus cumulative
// status counters.
func (qc *QueueController) HandleStats(c *fiber.Ctx) error {
	ctx := c.Context()

	pending, err := qc.queue.GetQueueSize(ctx)
	if err != nil {
		return internalError(c)
	}
	processing, err := qc.queue.GetProcessingSize(ctx)
	if err != nil {
		return internalError(c)
	}
	deadLetter, err := qc.queue.GetDeadLetterSize(ctx)
	if err != nil {
		return internalError(c)
	}
	stats, err := qc.queue.GetJobStats(ctx)
	if err != nil {
		return internalError(c)
	}

	counters := make(map[string]int64, len(stats))
	for status, count := range stats {
		counters[string(status)] = count
	}

	received, err := counter.ReceivedCounts(ctx)
	if err != nil {
		return internalError(c)
	}
	rejected, err := counter.RejectedCounts(ctx)
	if err != nil {
		return internalError(c)
	}

	return c.JSON(fiber.Map{
		"pending":     pending,
		"processing":  processing,
		"dead_letter": deadLetter,
		"counters":    counters,
		"received":    received,
		"rejected":    rejected,
	})
}

package httpapi

import (
	"context"
	"time"

	"github.com/google/uuid"

	"llm_router/internal/auth"
	"llm_router/internal/logging"
	"llm_router/internal/models"
	"llm_router/internal/storage"
)

// usageRecorder fans one request outcome into the usage queue and the log
// sink. Both targets are best effort; request handling never fails on them.
type usageRecorder struct {
	worker *storage.UsageQueueWorker
	sink   logging.Sink
}

type requestOutcome struct {
	RequestContext *auth.RequestContext
	Endpoint       string
	Category       string
	RankingOrder   string
	StatusCode     int
	Started        time.Time
}

func (r *usageRecorder) record(ctx context.Context, out requestOutcome) {
	if out.RequestContext == nil {
		return
	}

	requestID := uuid.New()
	elapsed := time.Since(out.Started)

	if r.worker != nil {
		record := &models.UsageRecord{
			RequestID:      requestID,
			UserID:         out.RequestContext.UserID,
			Endpoint:       out.Endpoint,
			Category:       out.Category,
			RankingOrder:   out.RankingOrder,
			AnalysisTarget: out.RequestContext.AnalysisTarget,
			StatusCode:     out.StatusCode,
			ResponseTimeMS: int(elapsed.Milliseconds()),
		}
		if err := r.worker.Enqueue(ctx, record); err != nil {
			logging.Warningf("failed to enqueue usage record: %v", err)
		}
	}

	if r.sink != nil {
		rec := &logging.LogRecord{
			Timestamp:      out.Started,
			RequestID:      requestID.String(),
			UserID:         out.RequestContext.UserID,
			Endpoint:       out.Endpoint,
			Category:       out.Category,
			RankingOrder:   out.RankingOrder,
			AnalysisTarget: out.RequestContext.AnalysisTarget,
			StatusCode:     out.StatusCode,
			DurationMS:     elapsed.Milliseconds(),
		}
		if err := r.sink.Enqueue(rec); err != nil {
			logging.Debugf("failed to enqueue log record: %v", err)
		}
	}
}

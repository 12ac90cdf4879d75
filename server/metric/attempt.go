package metric

import (
	"context"
	"sync"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"

	"github.com/icon-project/minthub/module"
)

var (
	msRequests  = stats.Int64("requests", "Accepted Operation Requests", stats.UnitDimensionless)
	msSubmitted = stats.Int64("attempt_submitted", "Submitted Attempts", stats.UnitDimensionless)
	msConfirmed = stats.Int64("attempt_confirmed", "Confirmed Attempts", stats.UnitDimensionless)
	msFailed    = stats.Int64("attempt_failed", "Failed Attempts", stats.UnitDimensionless)
	msRetries   = stats.Int64("attempt_retries", "Attempt Number At Terminal", stats.UnitDimensionless)
	mkOp        = NewMetricKey("op")
	mkOutcome   = NewMetricKey("outcome")
	attemptMks  = []tag.Key{mkOp, mkOutcome}
)

func RegisterAttempts() {
	RegisterMetricView(msRequests, view.Count(), attemptMks)
	RegisterMetricView(msSubmitted, view.Count(), attemptMks)
	RegisterMetricView(msConfirmed, view.Count(), attemptMks)
	RegisterMetricView(msFailed, view.Count(), attemptMks)
	RegisterMetricView(msRetries, view.LastValue(), attemptMks)
}

// AttemptMetric counts attempt outcomes. It plugs into the service as
// an event sink.
type AttemptMetric struct {
	lock     sync.Mutex
	contexts map[string]context.Context
}

var _ module.EventSink = (*AttemptMetric)(nil)

func NewAttemptMetric() *AttemptMetric {
	return &AttemptMetric{
		contexts: make(map[string]context.Context),
	}
}

func (m *AttemptMetric) contextFor(op module.OperationKind, outcome module.EventOutcome) context.Context {
	m.lock.Lock()
	defer m.lock.Unlock()

	key := string(op) + "|" + string(outcome)
	ctx, ok := m.contexts[key]
	if !ok {
		ctx = NewMetricContext("",
			GetMetricTag(&mkOp, string(op)),
			GetMetricTag(&mkOutcome, string(outcome)))
		m.contexts[key] = ctx
	}
	return ctx
}

func (m *AttemptMetric) OnRequest(op module.OperationKind) {
	stats.Record(m.contextFor(op, ""), msRequests.M(1))
}

func (m *AttemptMetric) OnStatusEvent(ev *module.StatusEvent) {
	ctx := m.contextFor(ev.Op, ev.Outcome)
	switch ev.Outcome {
	case module.OutcomeSubmitted:
		stats.Record(ctx, msSubmitted.M(1))
	case module.OutcomeConfirmed:
		stats.Record(ctx, msConfirmed.M(1), msRetries.M(int64(ev.Attempt)))
	default:
		stats.Record(ctx, msFailed.M(1), msRetries.M(int64(ev.Attempt)))
	}
}

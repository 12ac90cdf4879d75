package service

import (
	"sync"

	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/module"
)

// sinkHub fans one status event out to every registered sink. Sinks are
// called synchronously after the transition is persisted; they must not
// block.
type sinkHub struct {
	lock  sync.RWMutex
	sinks []module.EventSink
}

func (h *sinkHub) Add(s module.EventSink) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.sinks = append(h.sinks, s)
}

func (h *sinkHub) OnStatusEvent(ev *module.StatusEvent) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	for _, s := range h.sinks {
		s.OnStatusEvent(ev)
	}
}

// RequestSink is an optional sink extension notified of every accepted
// operation request, before any attempt runs.
type RequestSink interface {
	OnRequest(op module.OperationKind)
}

func (h *sinkHub) OnRequest(op module.OperationKind) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	for _, s := range h.sinks {
		if rs, ok := s.(RequestSink); ok {
			rs.OnRequest(op)
		}
	}
}

// LogSink writes every status event to the log.
type LogSink struct {
	log log.Logger
}

func NewLogSink(logger log.Logger) *LogSink {
	return &LogSink{log: logger.WithFields(log.Fields{log.FieldKeyModule: "events"})}
}

func (s *LogSink) OnStatusEvent(ev *module.StatusEvent) {
	l := s.log.WithFields(log.Fields{log.FieldKeyDrop: ev.Entity.ID})
	switch ev.Outcome {
	case module.OutcomeFailedTransient, module.OutcomeFailedPermanent:
		l.Warnf("op=%s entity=%s outcome=%s attempt=%d err=%s",
			ev.Op, ev.Entity, ev.Outcome, ev.Attempt, ev.Error)
	default:
		l.Infof("op=%s entity=%s outcome=%s attempt=%d tx=%s",
			ev.Op, ev.Entity, ev.Outcome, ev.Attempt, ev.TxRef)
	}
}

package engine

import (
	"context"
	"log"

	"signal-enginev1/internal/model"
)

// monitorTick walks PENDING signals before ACTIVE ones. Both lists are
// snapshotted up front, so a signal activated during this tick is not
// evaluated for exit until the next tick. Per-signal failures are logged and
// skipped so one bad row never stalls the rest.
func (e *Engine) monitorTick(ctx context.Context) {
	if e.met != nil {
		e.met.MonitorTicks.Inc()
	}

	pending, err := e.signals.GetSignalsByStatus(ctx, model.StatusPending)
	if err != nil {
		log.Printf("[engine] monitor: loading pending signals failed: %v", err)
		if e.met != nil {
			e.met.MonitorErrors.Inc()
		}
		return
	}
	active, err := e.signals.GetSignalsByStatus(ctx, model.StatusActive)
	if err != nil {
		log.Printf("[engine] monitor: loading active signals failed: %v", err)
		if e.met != nil {
			e.met.MonitorErrors.Inc()
		}
		return
	}

	if e.met != nil {
		e.met.PendingSignals.Set(float64(len(pending)))
		e.met.ActiveSignals.Set(float64(len(active)))
	}

	for i := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := e.manager.ProcessPending(ctx, &pending[i]); err != nil {
			log.Printf("[engine] monitor: pending %s: %v", pending[i].ID, err)
			if e.met != nil {
				e.met.MonitorErrors.Inc()
			}
		}
	}

	for i := range active {
		if ctx.Err() != nil {
			return
		}
		if err := e.manager.ProcessActive(ctx, &active[i]); err != nil {
			log.Printf("[engine] monitor: active %s: %v", active[i].ID, err)
			if e.met != nil {
				e.met.MonitorErrors.Inc()
			}
			continue
		}
		if active[i].Status == model.StatusClosed && e.met != nil {
			e.met.SignalsClosed.WithLabelValues(string(active[i].CloseReason)).Inc()
		}
	}
}

package tools

import (
	"context"
	"time"

	"convo/session"
)

// Refresher settles provisional tool results after they have been rendered.
//
// It owns the pending-refresh lifecycle end to end: each sweep it registers
// any displayed price_lookup result still marked provisional, confirms the
// quote against the authoritative source, pushes the corrected payload into
// the session in place, and only then removes the pending-refresh
// registration. A confirm failure leaves the id registered so the result
// keeps rendering as "still updating" until a later sweep succeeds.
//
// Sweeps cover the controller's active thread only. Switching threads drops
// the old thread's registrations with its messages; when a thread with
// unsettled provisional results is reopened, the next sweep re-registers
// and settles them from the persisted payloads.
type Refresher struct {
	ctrl     *session.Controller
	source   QuoteSource
	interval time.Duration
}

func NewRefresher(ctrl *session.Controller, source QuoteSource, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Refresher{ctrl: ctrl, source: source, interval: interval}
}

// Run sweeps until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one register-and-confirm pass.
func (r *Refresher) Sweep(ctx context.Context) {
	snap := r.ctrl.Snapshot()

	pending := make(map[string]bool, len(snap.PendingRefreshIDs))
	for _, id := range snap.PendingRefreshIDs {
		pending[id] = true
	}

	for _, msg := range snap.Messages {
		for _, call := range msg.ToolCalls {
			if call.Name != ToolPriceLookup || call.Result == nil {
				continue
			}
			provisional, _ := call.Result.Payload["provisional"].(bool)
			if provisional && !pending[call.ID] {
				r.ctrl.AddPendingRefresh(call.ID)
				pending[call.ID] = true
			}
			if !pending[call.ID] {
				continue
			}

			symbol, _ := call.Arguments["symbol"].(string)
			if symbol == "" {
				// Nothing to confirm against; drop the registration.
				r.ctrl.RemovePendingRefresh(call.ID)
				continue
			}
			q, err := r.source.Confirm(ctx, symbol)
			if err != nil {
				continue // stays pending until a later sweep
			}
			r.ctrl.ApplyToolResultUpdate(call.ID, payload(q))
			r.ctrl.RemovePendingRefresh(call.ID)
		}
	}
}

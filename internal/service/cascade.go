package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/research-developer/agentmux/internal/adapter/ws"
	"github.com/research-developer/agentmux/internal/domain/cascade"
	"github.com/research-developer/agentmux/internal/port/messagequeue"
	"github.com/research-developer/agentmux/internal/registry"
)

// fanOutConcurrency bounds concurrent per-dispatch publishes.
const fanOutConcurrency = 8

// SendCascade resolves a cascading message against the current registry
// state and fans out the emitted dispatches: each one is broadcast on the
// hub and published to dispatch.<recipient> for the delivery
// collaborator. The core never performs the terminal write itself.
func (o *Orchestrator) SendCascade(ctx context.Context, msg cascade.Message) (*registry.CascadeResult, error) {
	res, err := o.store.ResolveCascade(ctx, msg)
	// A persistence failure can interrupt resolution midway; dispatches
	// emitted before the failure are durable and still fanned out.
	if res != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(fanOutConcurrency)
		for i := range res.Dispatches {
			d := &res.Dispatches[i]
			g.Go(func() error {
				o.hub.BroadcastEvent(gctx, ws.EventDispatch, ws.DispatchEvent{
					Recipient: d.Recipient,
					SessionID: d.SessionID,
					Content:   d.Content,
					Source:    string(d.Source),
				})
				o.publish(gctx, messagequeue.SubjectDispatchPrefix+d.Recipient, d)
				return nil
			})
		}
		_ = g.Wait()
		if o.metrics != nil {
			o.metrics.CascadesResolved.Add(ctx, 1)
			o.metrics.DispatchesEmitted.Add(ctx, int64(len(res.Dispatches)))
			o.metrics.DispatchesSuppressed.Add(ctx, int64(res.Suppressed))
		}
		o.log.Info("cascade resolved",
			"dispatched", len(res.Dispatches),
			"suppressed", res.Suppressed,
			"excluded", res.Excluded,
		)
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

// RecentDispatches returns up to limit recent dispatches, newest last.
func (o *Orchestrator) RecentDispatches(limit int) []cascade.Dispatch {
	return o.store.RecentDispatches(limit)
}

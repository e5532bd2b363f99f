package controller

import (
    "context"
    "time"

    "github.com/amirimatin/go-ensemble/internal/logutil"
    obsmetrics "github.com/amirimatin/go-ensemble/pkg/observability/metrics"
)

// Run is the single owner loop: it converges the lifecycle once, then handles
// events from in and from the peer source one at a time until ctx is done.
// Undismissed peer events are offered again every RetryInterval.
func (c *Controller) Run(ctx context.Context, in <-chan Event) error {
    ticker := time.NewTicker(c.opts.RetryInterval)
    defer ticker.Stop()

    var notify <-chan struct{}
    if c.peers != nil { notify = c.peers.Notify() }

    c.dispatch(ctx, ResourcesChanged{})
    c.drainPeers(ctx)
    for {
        select {
        case <-ctx.Done():
            return nil
        case ev, ok := <-in:
            if !ok {
                in = nil
                continue
            }
            c.dispatch(ctx, ev)
        case <-notify:
            c.drainPeers(ctx)
        case <-ticker.C:
            c.drainPeers(ctx)
        }
    }
}

func (c *Controller) dispatch(ctx context.Context, ev Event) error {
    err := c.Handle(ctx, ev)
    if err != nil && ctx.Err() == nil {
        logutil.Warnf(c.log, "%s not applied: %v", ev.Kind(), err)
    }
    return err
}

// drainPeers handles pending peer events in order and stops at the first
// failure so later events never overtake an earlier one.
func (c *Controller) drainPeers(ctx context.Context) {
    if c.peers == nil { return }
    pending := c.peers.Pending()
    obsmetrics.PeersPending.Set(float64(len(pending)))
    for _, ev := range pending {
        if ctx.Err() != nil { return }
        if err := c.dispatch(ctx, ev); err != nil { break }
    }
    obsmetrics.PeersPending.Set(float64(len(c.peers.Pending())))
}

package controller

import (
    "context"
    "fmt"

    "github.com/amirimatin/go-ensemble/internal/logutil"
    obsmetrics "github.com/amirimatin/go-ensemble/pkg/observability/metrics"
    "github.com/amirimatin/go-ensemble/pkg/quorum"
    "github.com/amirimatin/go-ensemble/pkg/status"
)

func (c *Controller) ensureInstalled(ctx context.Context) error {
    if c.flags.Installed { return nil }
    if !c.proc.VerifyResources(ctx) {
        c.report(status.LevelMaintenance, status.Render(status.PhaseAwaitingResources, 0, ""))
        return ErrResourceUnavailable
    }
    c.report(status.LevelMaintenance, status.Render(status.PhaseInstalling, 0, ""))
    if err := c.proc.Install(ctx); err != nil { return c.fail("install", err) }
    if err := c.proc.InitialConfig(ctx); err != nil { return c.fail("initial config", err) }

    c.mu.Lock()
    c.flags.Installed = true
    c.mu.Unlock()
    c.saveFlags()
    c.setState(StateInstalled)
    logutil.Infof(c.log, "zookeeper installed")
    c.report(status.LevelMaintenance, status.Render(status.PhaseInstalled, 0, ""))
    return nil
}

// ensureStarted reports whether it started the service in this call.
func (c *Controller) ensureStarted(ctx context.Context) (bool, error) {
    if c.flags.Started { return false, nil }
    if err := c.proc.Start(ctx); err != nil { return false, c.fail("start", err) }
    if err := c.proc.OpenPorts(ctx); err != nil { return false, c.fail("open ports", err) }

    c.mu.Lock()
    c.flags.Started = true
    c.mu.Unlock()
    c.saveFlags()
    c.setState(StateRunning)
    logutil.Infof(c.log, "zookeeper started")
    c.report(status.LevelActive, status.Render(status.PhaseReady, 0, ""))
    return true, nil
}

// reconcile updates the bind address when the network interface moved, then
// restarts the service when the rendered configuration changed. With an
// unchanged configuration it only re-asserts that the service runs.
func (c *Controller) reconcile(ctx context.Context) error {
    iface := c.cfg.Get(KeyNetworkInterface)
    if c.det.Changed(watchBindAddress, iface) {
        logutil.Infof(c.log, "network interface changed to %q: updating bind address", iface)
        if err := c.proc.UpdateBindAddress(ctx); err != nil { return c.fail("update bind address", err) }
        obsmetrics.BindAddressUpdates.Inc()
    }
    c.det.Commit(watchBindAddress, iface)
    c.saveWatched()

    fps, err := c.cfg.RenderedConfigFingerprints()
    if err != nil {
        logutil.Errorf(c.log, "fingerprint rendered config: %v", err)
        return fmt.Errorf("%w: %w", ErrConfigUnreadable, err)
    }
    if !c.det.FilesChanged(fps) {
        // Make sure the service is running in any case.
        if err := c.proc.Start(ctx); err != nil { return c.fail("start", err) }
        if err := c.proc.OpenPorts(ctx); err != nil { return c.fail("open ports", err) }
        return c.assertRest(ctx)
    }

    c.setState(StateRestarting)
    c.report(status.LevelMaintenance, status.Render(status.PhaseRestarting, 0, ""))
    obsmetrics.Restarts.Inc()
    if err := c.proc.Stop(ctx); err != nil {
        c.setState(StateRunning)
        return c.fail("stop", err)
    }
    if err := c.proc.Start(ctx); err != nil {
        c.setState(StateRunning)
        return c.fail("start", err)
    }
    c.det.CommitFiles(fps)
    c.saveWatched()
    c.setState(StateRunning)
    logutil.Infof(c.log, "zookeeper restarted for config change")
    if err := c.assertRest(ctx); err != nil { return err }
    c.reportReady(ctx)
    return nil
}

// assertRest starts the REST unit again when it is meant to be running.
func (c *Controller) assertRest(ctx context.Context) error {
    c.mu.RLock()
    on := c.flags.RestEnabled
    c.mu.RUnlock()
    if !on { return nil }
    if err := c.proc.StartRest(ctx); err != nil { return c.fail("start rest", err) }
    return nil
}

// reportReady publishes the Ready status with the ensemble size taken from
// the membership record.
func (c *Controller) reportReady(ctx context.Context) {
    n := c.members.Size()
    if pc, err := c.proc.CurrentPeerCount(ctx); err != nil {
        logutil.Debugf(c.log, "process peer count unavailable: %v", err)
    } else if pc != n {
        obsmetrics.PeerCountDrift.Inc()
        logutil.Warnf(c.log, "process reports %d peers, membership record has %d; reporting %d", pc, n, n)
    }
    _, adv := quorum.Classify(n)
    c.report(status.LevelActive, status.Render(status.PhaseReady, n, adv))
}

func (c *Controller) toggleRest(ctx context.Context, enabled bool) error {
    c.report(status.LevelMaintenance, status.Render(status.PhaseUpdatingRest, 0, ""))
    if enabled {
        if err := c.proc.StartRest(ctx); err != nil { return c.fail("start rest", err) }
    } else {
        if err := c.proc.StopRest(ctx); err != nil { return c.fail("stop rest", err) }
    }
    c.mu.Lock()
    c.flags.RestEnabled = enabled
    c.mu.Unlock()
    c.saveFlags()
    c.report(status.LevelActive, status.Render(status.PhaseReady, 0, ""))
    return nil
}

func (c *Controller) quorumAdd(ctx context.Context, e PeerJoined) error {
    return c.applyPeer(ctx, KindPeerJoined, e.Marker, e.Peer, func(p string) bool { return c.members.AddServer(p, e.ServerID) })
}

func (c *Controller) quorumRemove(ctx context.Context, e PeerDeparted) error {
    return c.applyPeer(ctx, KindPeerDeparted, e.Marker, e.Peer, c.members.RemovePeer)
}

// applyPeer applies a membership change, runs the restart decision and only
// then dismisses the event at its source. A failure before dismissal leaves
// the event pending, and re-applying it is a no-op.
func (c *Controller) applyPeer(ctx context.Context, kind EventKind, marker, peer string, apply func(string) bool) error {
    if apply(peer) {
        obsmetrics.PeerEvents.WithLabelValues(string(kind), "applied").Inc()
        logutil.Infof(c.log, "%s: %s (ensemble size %d, version %d)", kind, peer, c.members.Size(), c.members.Version())
        c.saveMembers()
        c.observeMembers()
    } else {
        obsmetrics.PeerEvents.WithLabelValues(string(kind), "duplicate").Inc()
        logutil.Debugf(c.log, "%s: %s already applied", kind, peer)
    }
    if r, ok := c.cfg.(QuorumRenderer); ok {
        if err := r.RenderQuorum(c.members.Servers(), c.members.ServerID(c.opts.Self)); err != nil {
            logutil.Errorf(c.log, "render quorum: %v", err)
            return fmt.Errorf("%w: %w", ErrRenderFailed, err)
        }
    }
    if err := c.reconcile(ctx); err != nil { return err }
    if c.peers != nil && marker != "" {
        c.peers.Dismiss(marker)
    }
    return nil
}

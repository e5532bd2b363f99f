package controller

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strconv"
    "sync"
    "time"

    "go.opentelemetry.io/otel/attribute"
    "go.uber.org/zap"

    "github.com/amirimatin/go-ensemble/pkg/changes"
    "github.com/amirimatin/go-ensemble/internal/logutil"
    obsmetrics "github.com/amirimatin/go-ensemble/pkg/observability/metrics"
    "github.com/amirimatin/go-ensemble/pkg/observability/tracing"
    "github.com/amirimatin/go-ensemble/pkg/quorum"
    mstate "github.com/amirimatin/go-ensemble/pkg/state"
    "github.com/amirimatin/go-ensemble/pkg/state/membership"
    "github.com/amirimatin/go-ensemble/pkg/status"
    "github.com/amirimatin/go-ensemble/pkg/store"
)

// Controller converges the local coordination service with the desired
// ensemble membership. Handle is serialized; Status and Connection may be
// called from any goroutine.
type Controller struct {
    opts    Options
    log     *zap.Logger
    proc    Process
    cfg     ConfigSource
    peers   PeerEventSource
    sink    status.Sink
    persist Persister

    members mstate.MembershipState
    det     *changes.Detector

    hmu sync.Mutex // serializes Handle

    mu    sync.RWMutex // guards the fields below, read by Status
    state State
    flags flags
    last  status.Entry
}

// New builds a controller and restores any persisted state. It performs no
// process operations; those happen on the first Handle.
func New(opts Options) (*Controller, error) {
    if err := opts.Validate(); err != nil {
        return nil, err
    }
    if opts.Persister == nil { opts.Persister = store.NewMemory() }
    if opts.RetryInterval == 0 { opts.RetryInterval = 5 * time.Second }
    c := &Controller{
        opts:    opts,
        log:     logutil.OrNop(opts.Logger),
        proc:    opts.Process,
        cfg:     opts.Config,
        peers:   opts.Peers,
        sink:    opts.Status,
        persist: opts.Persister,
        members: membership.NewWithServerID(opts.Self, opts.ServerID),
        det:     changes.New(),
    }
    if err := c.restore(); err != nil { return nil, err }
    c.state = c.flags.state()
    obsmetrics.Register()
    c.observeState(c.state)
    c.observeMembers()
    return c, nil
}

// Handle processes one event to completion. Lifecycle convergence (install,
// start) always runs first; the event is dispatched only once the service is
// running. Errors wrap one of the package sentinels.
func (c *Controller) Handle(ctx context.Context, ev Event) (err error) {
    c.hmu.Lock()
    defer c.hmu.Unlock()
    if ev == nil { return fmt.Errorf("%w: nil", ErrUnknownEvent) }
    ctx, end := tracing.StartSpan(ctx, "controller.handle", &err, attribute.String("event", string(ev.Kind())))
    defer end()
    err = c.handle(ctx, ev)
    result := "ok"
    if err != nil { result = "error" }
    obsmetrics.EventsTotal.WithLabelValues(string(ev.Kind()), result).Inc()
    return err
}

func (c *Controller) handle(ctx context.Context, ev Event) error {
    if err := c.ensureInstalled(ctx); err != nil { return err }
    started, err := c.ensureStarted(ctx)
    if err != nil { return err }
    switch e := ev.(type) {
    case ResourcesChanged:
        if started { return nil }
        // The service may have stopped while nothing was watching it.
        return c.reconcile(ctx)
    case ConfigChanged:
        return c.reconcile(ctx)
    case RestToggled:
        return c.toggleRest(ctx, e.Enabled)
    case PeerJoined:
        return c.quorumAdd(ctx, e)
    case PeerDeparted:
        return c.quorumRemove(ctx, e)
    default:
        return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
    }
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
    c.mu.RLock(); defer c.mu.RUnlock()
    return c.state
}

// Members returns the sorted ensemble peer ids.
func (c *Controller) Members() []string { return c.members.Snapshot() }

// Servers maps every ensemble peer to its server id.
func (c *Controller) Servers() map[string]int { return c.members.Servers() }

// ServerID is this node's server id.
func (c *Controller) ServerID() int { return c.members.ServerID(c.opts.Self) }

// Status synthesizes a snapshot of controller and membership state.
func (c *Controller) Status() Status {
    c.mu.RLock()
    s := Status{
        Node:        c.opts.Self,
        State:       c.state,
        Level:       c.last.Level,
        Message:     c.last.Message,
        Installed:   c.flags.Installed,
        Started:     c.flags.Started,
        RestEnabled: c.flags.RestEnabled,
        UpdatedAt:   c.last.At,
    }
    c.mu.RUnlock()
    s.Peers = c.members.Snapshot()
    s.Servers = c.members.Servers()
    s.ServerID = s.Servers[c.opts.Self]
    s.Size = len(s.Peers)
    s.Version = c.members.Version()
    s.Tolerated = quorum.Tolerated(s.Size)
    s.Grade, s.Advisory = quorum.Classify(s.Size)
    return s
}

// Connection returns the client connection details for this node. The host
// is resolved from the configured network interface when a resolver is set.
func (c *Controller) Connection() (ConnectionInfo, error) {
    info := ConnectionInfo{}
    var err error
    if v := c.cfg.Get(KeyClientPort); v != "" {
        if info.Port, err = strconv.Atoi(v); err != nil { return info, fmt.Errorf("controller: client port %q: %w", v, err) }
    }
    if v := c.cfg.Get(KeyRestPort); v != "" {
        if info.RestPort, err = strconv.Atoi(v); err != nil { return info, fmt.Errorf("controller: rest port %q: %w", v, err) }
    }
    if iface := c.cfg.Get(KeyNetworkInterface); iface != "" && c.opts.ResolveHost != nil {
        if info.Host, err = c.opts.ResolveHost(iface); err != nil { return info, fmt.Errorf("controller: resolve %s: %w", iface, err) }
    }
    return info, nil
}

func (c *Controller) setState(s State) {
    c.mu.Lock()
    c.state = s
    c.mu.Unlock()
    c.observeState(s)
}

func (c *Controller) observeState(cur State) {
    for _, s := range allStates {
        v := 0.0
        if s == cur { v = 1 }
        obsmetrics.ControllerState.WithLabelValues(string(s)).Set(v)
    }
}

func (c *Controller) observeMembers() {
    n := c.members.Size()
    obsmetrics.EnsembleSize.Set(float64(n))
    obsmetrics.MembershipVersion.Set(float64(c.members.Version()))
    if g, _ := quorum.Classify(n); g == quorum.GradeHealthy {
        obsmetrics.QuorumHealthy.Set(1)
    } else {
        obsmetrics.QuorumHealthy.Set(0)
    }
}

// report publishes a status from the Reporting sub-step and returns to the
// state the controller was in.
func (c *Controller) report(level status.Level, msg string) {
    c.mu.Lock()
    prev := c.state
    c.state = StateReporting
    c.last = status.Entry{Level: level, Message: msg, At: time.Now()}
    c.mu.Unlock()
    c.sink.Publish(level, msg)
    c.setState(prev)
}

// fail converts a collaborator failure into a maintenance status and an error
// wrapping ErrProcessOperationFailed.
func (c *Controller) fail(op string, err error) error {
    obsmetrics.OperationFailures.WithLabelValues(op).Inc()
    logutil.Errorf(c.log, "%s failed: %v", op, err)
    c.report(status.LevelMaintenance, status.Failure(op, err))
    return fmt.Errorf("%w: %s: %w", ErrProcessOperationFailed, op, err)
}

func (c *Controller) restore() error {
    if err := c.load(keyFlags, func(b []byte) error { return json.Unmarshal(b, &c.flags) }); err != nil { return err }
    if err := c.load(keyWatched, c.det.Restore); err != nil { return err }
    return c.load(keyMembership, c.members.Restore)
}

func (c *Controller) load(key string, apply func([]byte) error) error {
    b, err := c.persist.Load(key)
    if errors.Is(err, store.ErrNotFound) { return nil }
    if err != nil { return fmt.Errorf("controller: load %s: %w", key, err) }
    if err := apply(b); err != nil { return fmt.Errorf("controller: restore %s: %w", key, err) }
    return nil
}

func (c *Controller) saveFlags() {
    c.mu.RLock()
    b, err := json.Marshal(c.flags)
    c.mu.RUnlock()
    c.save(keyFlags, b, err)
}

func (c *Controller) saveWatched() {
    b, err := c.det.Snapshot()
    c.save(keyWatched, b, err)
}

func (c *Controller) saveMembers() {
    b, err := c.members.Marshal()
    c.save(keyMembership, b, err)
}

// save failures are logged; in-memory state stays authoritative for this
// process and the record is rewritten on the next committed step.
func (c *Controller) save(key string, b []byte, err error) {
    if err == nil { err = c.persist.Save(key, b) }
    if err != nil { logutil.Warnf(c.log, "persist %s: %v", key, err) }
}

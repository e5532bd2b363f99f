package memberlist

import (
    "context"
    "encoding/json"
    "fmt"
    "net"
    "strconv"
    "sync"
    "time"

    "github.com/hashicorp/memberlist"
    "go.uber.org/zap"

    "github.com/amirimatin/go-ensemble/internal/logutil"
    "github.com/amirimatin/go-ensemble/pkg/peers"
)

// Options configures the memberlist-based peer transport.
type Options struct {
    // NodeID is the unique gossip node name.
    NodeID string

    // PeerID is the ensemble peer id announced to others; defaults to NodeID.
    PeerID string

    // ServerID is the quorum server id announced to others; 0 announces none.
    ServerID int

    // Bind is the bind address in host:port form (e.g. ":7946" or "0.0.0.0:7946").
    Bind string

    // Advertise is the advertised address (host:port) that peers will use to reach this node.
    // If empty, memberlist derives it from Bind.
    Advertise string

    // Meta is optional extra metadata associated with the node.
    Meta map[string]string

    // Queue receives join and departure notifications (required).
    Queue *peers.Queue

    Logger *zap.Logger

    // Tuning parameters (optional). Zero means use defaults.
    ProbeInterval time.Duration
    ProbeTimeout  time.Duration
    SuspicionMult int
}

// Node implements peers.Membership using HashiCorp memberlist.
type Node struct {
    mu     sync.RWMutex
    opts   Options
    log    *zap.Logger
    ml     *memberlist.Memberlist
    closed bool
}

func New(opts Options) (*Node, error) {
    if opts.NodeID == "" {
        return nil, fmt.Errorf("memberlist: empty NodeID")
    }
    if opts.Bind == "" {
        return nil, fmt.Errorf("memberlist: empty Bind address")
    }
    if opts.Queue == nil {
        return nil, fmt.Errorf("memberlist: nil Queue")
    }
    if opts.PeerID == "" { opts.PeerID = opts.NodeID }
    meta := map[string]string{}
    for k, v := range opts.Meta { meta[k] = v }
    meta[peers.MetaPeer] = opts.PeerID
    if opts.ServerID > 0 { meta[peers.MetaServerID] = strconv.Itoa(opts.ServerID) }
    opts.Meta = meta
    return &Node{opts: opts, log: logutil.OrNop(opts.Logger)}, nil
}

// Start creates and launches the underlying memberlist instance.
func (m *Node) Start(ctx context.Context) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.ml != nil {
        return nil
    }

    cfg := memberlist.DefaultLANConfig()
    cfg.Name = m.opts.NodeID
    host, port, err := splitHostPort(m.opts.Bind)
    if err != nil {
        return fmt.Errorf("memberlist: invalid bind address %q: %w", m.opts.Bind, err)
    }
    cfg.BindAddr = host
    cfg.BindPort = port

    if m.opts.Advertise != "" {
        ahost, aport, err := splitHostPort(m.opts.Advertise)
        if err != nil {
            return fmt.Errorf("memberlist: invalid advertise address %q: %w", m.opts.Advertise, err)
        }
        cfg.AdvertiseAddr = ahost
        cfg.AdvertisePort = aport
    }

    if m.opts.ProbeInterval > 0 {
        cfg.ProbeInterval = m.opts.ProbeInterval
    }
    if m.opts.ProbeTimeout > 0 {
        cfg.ProbeTimeout = m.opts.ProbeTimeout
    }
    if m.opts.SuspicionMult > 0 {
        cfg.SuspicionMult = m.opts.SuspicionMult
    }
    cfg.LogOutput = zap.NewStdLog(m.log.Named("memberlist")).Writer()

    metaBytes, err := encodeMeta(m.opts.Meta, memberlist.MetaMaxSize, m.log)
    if err != nil { return err }
    cfg.Events = &eventDelegate{queue: m.opts.Queue, log: m.log}
    cfg.Delegate = &nodeDelegate{meta: metaBytes}

    ml, err := memberlist.Create(cfg)
    if err != nil {
        return err
    }
    m.ml = ml

    go func() {
        <-ctx.Done()
        _ = m.Stop()
    }()
    return nil
}

func (m *Node) Join(seeds []string) error {
    m.mu.RLock()
    ml := m.ml
    m.mu.RUnlock()
    if ml == nil {
        return fmt.Errorf("memberlist: not started")
    }
    if len(seeds) == 0 {
        return nil
    }
    n, err := ml.Join(seeds)
    logutil.Infof(m.log, "joined %d of %d gossip seeds", n, len(seeds))
    return err
}

func (m *Node) Local() peers.Member {
    m.mu.RLock()
    defer m.mu.RUnlock()
    if m.ml == nil {
        return peers.Member{}
    }
    return toMember(m.ml.LocalNode())
}

func (m *Node) Members() []peers.Member {
    m.mu.RLock()
    defer m.mu.RUnlock()
    if m.ml == nil {
        return nil
    }
    nodes := m.ml.Members()
    out := make([]peers.Member, 0, len(nodes))
    for _, n := range nodes { out = append(out, toMember(n)) }
    return out
}

func (m *Node) Leave() error {
    m.mu.RLock()
    ml := m.ml
    m.mu.RUnlock()
    if ml == nil {
        return nil
    }
    // best-effort: leave and give some time to broadcast
    _ = ml.Leave(time.Second)
    return nil
}

func (m *Node) Stop() error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.closed {
        return nil
    }
    m.closed = true
    if m.ml != nil {
        _ = m.ml.Shutdown()
        m.ml = nil
    }
    return nil
}

// HealthScore exposes memberlist's awareness score.
func (m *Node) HealthScore() int {
    m.mu.RLock()
    defer m.mu.RUnlock()
    if m.ml == nil {
        return -1
    }
    return m.ml.GetHealthScore()
}

func toMember(n *memberlist.Node) peers.Member {
    meta := map[string]string{}
    if len(n.Meta) > 0 { _ = json.Unmarshal(n.Meta, &meta) }
    return peers.Member{ID: n.Name, Addr: net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port))), Meta: meta}
}

// eventDelegate turns memberlist notifications into pending peer events.
// Updates are delivered as joins; the controller treats repeats as no-ops.
type eventDelegate struct {
    queue *peers.Queue
    log   *zap.Logger
}

func (d *eventDelegate) NotifyJoin(n *memberlist.Node) {
    if n == nil { return }
    mem := toMember(n)
    d.queue.JoinedServer(mem.PeerID(), mem.ServerID())
}

func (d *eventDelegate) NotifyLeave(n *memberlist.Node) {
    if n == nil { return }
    // memberlist conflates explicit leave and failure/timeouts.
    d.queue.Departed(toMember(n).PeerID())
}

func (d *eventDelegate) NotifyUpdate(n *memberlist.Node) {
    if n == nil { return }
    logutil.Debugf(d.log, "gossip update from %s", n.Name)
    mem := toMember(n)
    d.queue.JoinedServer(mem.PeerID(), mem.ServerID())
}

func splitHostPort(addr string) (string, int, error) {
    host, portStr, err := net.SplitHostPort(addr)
    if err != nil { return "", 0, err }
    p, err := strconv.Atoi(portStr)
    if err != nil || p < 0 || p > 65535 {
        return "", 0, fmt.Errorf("invalid port: %q", portStr)
    }
    return host, p, nil
}

// encodeMeta marshals meta within limit bytes. Optional keys are dropped
// when it does not fit; the peer and server id keys are required.
func encodeMeta(meta map[string]string, limit int, log *zap.Logger) ([]byte, error) {
    b, err := json.Marshal(meta)
    if err != nil { return nil, err }
    if len(b) <= limit { return b, nil }
    required := map[string]string{}
    for _, k := range []string{peers.MetaPeer, peers.MetaServerID} {
        if v, ok := meta[k]; ok { required[k] = v }
    }
    logutil.Warnf(log, "gossip metadata is %d bytes, over the %d byte limit; dropping optional keys", len(b), limit)
    b, err = json.Marshal(required)
    if err != nil { return nil, err }
    if len(b) > limit { return nil, fmt.Errorf("memberlist: metadata %d bytes exceeds %d", len(b), limit) }
    return b, nil
}

// nodeDelegate implements memberlist.Delegate to propagate node metadata.
type nodeDelegate struct{ meta []byte }

// NodeMeta returns the encoded metadata, or nothing when it exceeds limit.
func (d *nodeDelegate) NodeMeta(limit int) []byte {
    if len(d.meta) > limit { return nil }
    return d.meta
}

// Unused hooks for our purposes; required to satisfy the interface.
func (d *nodeDelegate) NotifyMsg([]byte)                       {}
func (d *nodeDelegate) GetBroadcasts(int, int) [][]byte        { return nil }
func (d *nodeDelegate) LocalState(join bool) []byte            { return nil }
func (d *nodeDelegate) MergeRemoteState(buf []byte, join bool) {}

var (
    _ peers.Membership     = (*Node)(nil)
    _ peers.HealthReporter = (*Node)(nil)
)

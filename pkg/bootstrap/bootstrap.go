// Package bootstrap assembles a controller node from its configuration: the
// options file, durable store, process adapter, gossip membership, seed
// discovery, management API and config watcher.
package bootstrap

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "errors"
    "fmt"
    "net"
    "path/filepath"
    "slices"
    "sync"
    "time"

    "go.uber.org/zap"

    "github.com/amirimatin/go-ensemble/pkg/config"
    "github.com/amirimatin/go-ensemble/pkg/controller"
    "github.com/amirimatin/go-ensemble/pkg/discovery"
    dDNS "github.com/amirimatin/go-ensemble/pkg/discovery/dns"
    dFile "github.com/amirimatin/go-ensemble/pkg/discovery/file"
    dStatic "github.com/amirimatin/go-ensemble/pkg/discovery/static"
    "github.com/amirimatin/go-ensemble/internal/logutil"
    "github.com/amirimatin/go-ensemble/pkg/peers"
    ml "github.com/amirimatin/go-ensemble/pkg/peers/memberlist"
    "github.com/amirimatin/go-ensemble/pkg/process"
    tlsx "github.com/amirimatin/go-ensemble/pkg/security/tlsconfig"
    "github.com/amirimatin/go-ensemble/pkg/status"
    "github.com/amirimatin/go-ensemble/pkg/store"
    "github.com/amirimatin/go-ensemble/pkg/transport"
    httpjson "github.com/amirimatin/go-ensemble/pkg/transport/httpjson"
)

// ErrQueueFull is returned to management callers when the controller loop is
// not keeping up.
var ErrQueueFull = errors.New("bootstrap: event queue full")

// Config defines the inputs to assemble a node.
type Config struct {
    // Identity and addresses
    NodeID string // gossip node name
    PeerID string // ensemble peer id (host); defaults to the advertise host, then NodeID
    ServerID int  // quorum server id announced to peers and written to myid; 0 allocates locally
    MemBind string // membership bind host:port
    MemAdv  string // optional advertise host:port

    // OptionsFile is the YAML options file; empty means defaults.
    OptionsFile string

    // Management API (status/connection/reconcile/rest/metrics)
    MgmtAddr string

    // Discovery settings
    DiscoveryKind string // "static" (default), "file" or "dns"
    SeedsCSV      string // used when DiscoveryKind=static
    FilePath      string // used when kind=file
    FileEnv       string // used when kind=file
    DNSNames      string // CSV of SRV records or host names, used when kind=dns
    DNSPort       int    // gossip port for host name answers, used when kind=dns

    // DataDir holds the durable controller state; empty keeps it in memory.
    DataDir string

    // TLS (optional) for management API
    TLSEnable     bool
    TLSCA         string
    TLSCert       string
    TLSKey        string
    TLSServerName string
    TLSSkipVerify bool

    // RetryInterval re-offers undismissed peer events; see controller.Options.
    RetryInterval time.Duration
    // Debounce for the options and rendered config watcher.
    WatchDebounce time.Duration

    // Units overrides the systemd connection, e.g. in tests.
    Units process.Units
    // Runner overrides hook execution.
    Runner process.Runner

    // Logger (optional). If nil, a no-op logger is used.
    Logger *zap.Logger
}

// TLS returns the management TLS options.
func (c Config) TLS() tlsx.Options {
    return tlsx.Options{Enable: c.TLSEnable, CAFile: c.TLSCA, CertFile: c.TLSCert, KeyFile: c.TLSKey, InsecureSkipVerify: c.TLSSkipVerify, ServerName: c.TLSServerName}
}

// ClientTLS builds the management client TLS config, nil when disabled.
func (c Config) ClientTLS() (*tls.Config, error) { return c.TLS().Client() }

func (c Config) peerID() string {
    if c.PeerID != "" { return c.PeerID }
    if c.MemAdv != "" {
        if h, _, err := net.SplitHostPort(c.MemAdv); err == nil && h != "" { return h }
    }
    return c.NodeID
}

// Node is an assembled, not yet running, controller node.
type Node struct {
    cfg    Config
    log    *zap.Logger
    opts   *config.File
    queue  *peers.Queue
    mem    *ml.Node
    disc   discovery.Discovery
    srv    *httpjson.Server
    rec    *status.Recorder
    ctrl   *controller.Controller
    events chan controller.Event

    mu      sync.Mutex
    closers []func() error
}

// Build assembles a Node from Config without starting it.
func Build(ctx context.Context, cfg Config) (*Node, error) {
    if cfg.NodeID == "" { return nil, errors.New("bootstrap: empty NodeID") }
    if cfg.ServerID < 0 { return nil, errors.New("bootstrap: negative ServerID") }
    if cfg.MemBind == "" { cfg.MemBind = ":7946" }
    if cfg.MgmtAddr == "" { cfg.MgmtAddr = ":17946" }
    n := &Node{cfg: cfg, log: logutil.OrNop(cfg.Logger), rec: status.NewRecorder(64), events: make(chan controller.Event, 32)}
    ok := false
    defer func() {
        if !ok { _ = n.Close() }
    }()

    opts, err := config.Open(cfg.OptionsFile, n.log.Named("config"))
    if err != nil { return nil, err }
    n.opts = opts

    var persist controller.Persister = store.NewMemory()
    if cfg.DataDir != "" {
        b, err := store.OpenBolt(filepath.Join(cfg.DataDir, "controller.db"))
        if err != nil { return nil, err }
        n.onClose(b.Close)
        persist = b
    }

    units := cfg.Units
    if units == nil {
        sd, err := process.DialSystemd(ctx)
        if err != nil { return nil, err }
        units = sd
    }
    n.onClose(func() error { units.Close(); return nil })
    proc, err := process.New(process.Options{Config: opts, Units: units, Runner: cfg.Runner, Logger: n.log.Named("process")})
    if err != nil { return nil, err }

    self := cfg.peerID()
    n.queue = peers.NewQueue(self)
    n.mem, err = ml.New(ml.Options{NodeID: cfg.NodeID, PeerID: self, ServerID: cfg.ServerID, Bind: cfg.MemBind, Advertise: cfg.MemAdv, Queue: n.queue, Logger: n.log.Named("gossip")})
    if err != nil { return nil, err }
    n.onClose(n.mem.Stop)

    switch cfg.DiscoveryKind {
    case "file":
        n.disc = dFile.New(dFile.Options{Path: cfg.FilePath, Env: cfg.FileEnv, Logger: n.log})
    case "dns":
        n.disc = dDNS.New(dDNS.Options{Names: dDNS.ParseNames(cfg.DNSNames), Port: cfg.DNSPort, Logger: n.log.Named("dns")})
    case "", "static":
        n.disc = dStatic.New(cfg.SeedsCSV)
    default:
        return nil, fmt.Errorf("bootstrap: unknown discovery %q", cfg.DiscoveryKind)
    }

    n.srv = httpjson.NewServer(cfg.MgmtAddr, n.log.Named("mgmt"))
    srvTLS, err := cfg.TLS().Server()
    if err != nil { return nil, err }
    if srvTLS != nil { n.srv.UseTLS(srvTLS) }
    n.onClose(func() error { return n.srv.Stop(context.Background()) })

    n.ctrl, err = controller.New(controller.Options{
        Self:          self,
        ServerID:      cfg.ServerID,
        Process:       proc,
        Config:        opts,
        Peers:         n.queue,
        Status:        status.Multi(n.rec, status.LogSink{Logger: n.log.Named("status")}),
        Persister:     persist,
        ResolveHost:   config.InterfaceIP,
        RetryInterval: cfg.RetryInterval,
        Logger:        n.log.Named("controller"),
    })
    if err != nil { return nil, err }
    ok = true
    return n, nil
}

// Controller returns the node's controller.
func (n *Node) Controller() *controller.Controller { return n.ctrl }

// MgmtAddr returns the management API address, resolved once running.
func (n *Node) MgmtAddr() string { return n.srv.Addr() }

// GossipAddr returns the membership address peers join, once running.
func (n *Node) GossipAddr() string { return n.mem.Local().Addr }

// Recorder holds the statuses published by the controller.
func (n *Node) Recorder() *status.Recorder { return n.rec }

// Run starts gossip, the management API and the watcher, then runs the
// controller loop until ctx is done.
func (n *Node) Run(ctx context.Context) error {
    ctx, cancel := context.WithCancel(ctx)
    defer cancel()

    if err := n.mem.Start(ctx); err != nil { return err }
    if seeds := n.disc.Seeds(); len(seeds) > 0 {
        if err := n.mem.Join(seeds); err != nil { logutil.Warnf(n.log, "join seeds %v: %v", seeds, err) }
    }

    if err := n.srv.Start(ctx, n.handlers()); err != nil { return err }

    o := n.opts.Options()
    if err := n.opts.RenderQuorum(n.ctrl.Servers(), n.ctrl.ServerID()); err != nil {
        logutil.Warnf(n.log, "render server list: %v", err)
    }
    w, err := config.Watch(ctx, config.WatchOptions{
        Files:    []string{n.opts.Path(), o.RenderedConfig},
        Debounce: n.cfg.WatchDebounce,
        OnChange: func(path string) { n.fileChanged(ctx, path) },
        Logger:   n.log.Named("watch"),
    })
    if err != nil { return err }
    n.onClose(w.Close)

    logutil.Infof(n.log, "node %s (peer %s) running; management API on %s", n.cfg.NodeID, n.ctrl.Status().Node, n.srv.Addr())
    return n.ctrl.Run(ctx, n.events)
}

func (n *Node) fileChanged(ctx context.Context, path string) {
    if n.opts.Path() == "" || path != filepath.Clean(n.opts.Path()) {
        _ = n.enqueue(ctx, controller.ConfigChanged{})
        return
    }
    changed, err := n.opts.Reload()
    if err != nil {
        logutil.Warnf(n.log, "reload options: %v", err)
        return
    }
    if slices.Contains(changed, config.KeyRest) {
        _ = n.enqueue(ctx, controller.RestToggled{Enabled: n.opts.Options().Rest})
    }
    if len(changed) > 0 {
        _ = n.enqueue(ctx, controller.ConfigChanged{})
    }
}

func (n *Node) enqueue(ctx context.Context, ev controller.Event) error {
    select {
    case n.events <- ev:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    default:
        logutil.Warnf(n.log, "dropping %s: %v", ev.Kind(), ErrQueueFull)
        return ErrQueueFull
    }
}

func (n *Node) handlers() transport.Handlers {
    return transport.Handlers{
        Status:     func(context.Context) ([]byte, error) { return json.Marshal(n.ctrl.Status()) },
        Connection: func(context.Context) ([]byte, error) {
            info, err := n.ctrl.Connection()
            if err != nil { return nil, err }
            return json.Marshal(info)
        },
        Reconcile: func(ctx context.Context) error { return n.enqueue(ctx, controller.ConfigChanged{}) },
        Resources: func(ctx context.Context) error { return n.enqueue(ctx, controller.ResourcesChanged{}) },
        Rest:      func(ctx context.Context, enabled bool) error { return n.enqueue(ctx, controller.RestToggled{Enabled: enabled}) },
    }
}

func (n *Node) onClose(fn func() error) {
    n.mu.Lock(); defer n.mu.Unlock()
    n.closers = append(n.closers, fn)
}

// Close releases everything Build and Run acquired, newest first.
func (n *Node) Close() error {
    n.mu.Lock()
    closers := n.closers
    n.closers = nil
    n.mu.Unlock()
    var errs []error
    for i := len(closers) - 1; i >= 0; i-- {
        if err := closers[i](); err != nil { errs = append(errs, err) }
    }
    return errors.Join(errs...)
}

// Run builds and runs a node until ctx is done.
func Run(ctx context.Context, cfg Config) error {
    n, err := Build(ctx, cfg)
    if err != nil { return err }
    defer n.Close()
    return n.Run(ctx)
}

var (
    _ controller.ConfigSource   = (*config.File)(nil)
    _ controller.QuorumRenderer = (*config.File)(nil)
)

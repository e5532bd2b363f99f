// Package process drives the local coordination service: systemd units for
// the server and its REST gateway, and hook commands for install,
// configuration and firewall steps.
package process

import (
    "context"
    "errors"
    "fmt"
    "os"
    "strconv"

    "go.uber.org/zap"

    "github.com/amirimatin/go-ensemble/pkg/config"
    "github.com/amirimatin/go-ensemble/pkg/controller"
    "github.com/amirimatin/go-ensemble/internal/logutil"
)

// ErrNoRestUnit is returned by StartRest/StopRest when no REST unit is set.
var ErrNoRestUnit = errors.New("process: no rest unit configured")

// OptionsSource supplies the current options; *config.File satisfies it.
type OptionsSource interface {
    Options() config.Options
}

type Options struct {
    Config OptionsSource
    Units  Units
    // Runner runs hooks; ExecRunner when nil.
    Runner Runner
    // ResolveIP maps an interface to its address; config.InterfaceIP when nil.
    ResolveIP func(iface string) (string, error)
    Logger    *zap.Logger
}

// Service implements controller.Process.
type Service struct {
    cfg     OptionsSource
    units   Units
    run     Runner
    resolve func(string) (string, error)
    log     *zap.Logger
}

func New(opts Options) (*Service, error) {
    if opts.Config == nil { return nil, errors.New("process: nil Config") }
    if opts.Units == nil { return nil, errors.New("process: nil Units") }
    s := &Service{cfg: opts.Config, units: opts.Units, run: opts.Runner, resolve: opts.ResolveIP, log: logutil.OrNop(opts.Logger)}
    if s.run == nil { s.run = ExecRunner{Logger: s.log} }
    if s.resolve == nil { s.resolve = config.InterfaceIP }
    return s, nil
}

// VerifyResources reports whether every configured resource path exists.
func (s *Service) VerifyResources(ctx context.Context) bool {
    for _, p := range s.cfg.Options().Resources {
        if _, err := os.Stat(p); err != nil {
            logutil.Warnf(s.log, "resource %s unavailable: %v", p, err)
            return false
        }
    }
    return true
}

func (s *Service) Install(ctx context.Context) error {
    o := s.cfg.Options()
    return s.hook(ctx, "install", o.Hooks.Install, s.env(o, ""))
}

func (s *Service) InitialConfig(ctx context.Context) error {
    o := s.cfg.Options()
    return s.hook(ctx, "initial config", o.Hooks.InitialConfig, s.env(o, ""))
}

func (s *Service) Start(ctx context.Context) error { return s.units.StartUnit(ctx, s.cfg.Options().Units.Server) }

func (s *Service) Stop(ctx context.Context) error { return s.units.StopUnit(ctx, s.cfg.Options().Units.Server) }

func (s *Service) OpenPorts(ctx context.Context) error {
    o := s.cfg.Options()
    return s.hook(ctx, "open ports", o.Hooks.OpenPorts, s.env(o, ""))
}

// UpdateBindAddress runs the bind address hook with ZK_BIND_ADDRESS set to
// the address of the configured interface, or 0.0.0.0 when none is set.
func (s *Service) UpdateBindAddress(ctx context.Context) error {
    o := s.cfg.Options()
    addr := "0.0.0.0"
    if o.NetworkInterface != "" {
        ip, err := s.resolve(o.NetworkInterface)
        if err != nil { return err }
        addr = ip
    }
    return s.hook(ctx, "update bind address", o.Hooks.UpdateBindAddress, s.env(o, addr))
}

func (s *Service) StartRest(ctx context.Context) error {
    u := s.cfg.Options().Units.Rest
    if u == "" { return ErrNoRestUnit }
    return s.units.StartUnit(ctx, u)
}

func (s *Service) StopRest(ctx context.Context) error {
    u := s.cfg.Options().Units.Rest
    if u == "" { return ErrNoRestUnit }
    return s.units.StopUnit(ctx, u)
}

// CurrentPeerCount counts the servers listed in the rendered configuration.
func (s *Service) CurrentPeerCount(ctx context.Context) (int, error) {
    b, err := os.ReadFile(s.cfg.Options().RenderedConfig)
    if err != nil { return 0, fmt.Errorf("process: peer count: %w", err) }
    return config.CountServers(b), nil
}

func (s *Service) hook(ctx context.Context, name string, argv, env []string) error {
    if len(argv) == 0 { return nil }
    logutil.Infof(s.log, "running %s hook: %v", name, argv)
    return s.run.Run(ctx, argv, env)
}

func (s *Service) env(o config.Options, bind string) []string {
    env := []string{
        "ZK_NETWORK_INTERFACE=" + o.NetworkInterface,
        "ZK_CLIENT_PORT=" + strconv.Itoa(o.ClientPort),
        "ZK_REST_PORT=" + strconv.Itoa(o.RestPort),
        "ZK_RENDERED_CONFIG=" + o.RenderedConfig,
    }
    if bind != "" { env = append(env, "ZK_BIND_ADDRESS="+bind) }
    return env
}

var _ controller.Process = (*Service)(nil)

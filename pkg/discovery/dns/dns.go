// Package dns resolves gossip seeds from SRV records or host names.
package dns

import (
    "context"
    "net"
    "strconv"
    "strings"
    "sync"
    "time"

    "go.uber.org/zap"

    "github.com/amirimatin/go-ensemble/pkg/discovery"
    "github.com/amirimatin/go-ensemble/internal/logutil"
)

// Resolver is the subset of *net.Resolver used for lookups.
type Resolver interface {
    LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
    LookupHost(ctx context.Context, host string) ([]string, error)
}

// Options configures DNS-based discovery.
type Options struct {
    // Names are SRV records ("_zk-gossip._tcp.example.com"), host names,
    // or literal host:port seeds.
    Names []string

    // Port is the gossip port appended to host name answers; default 7946.
    Port int

    // Refresh is how long answers are reused; default 5s.
    Refresh time.Duration

    // Timeout bounds one round of lookups; default 2s.
    Timeout time.Duration

    // Resolver overrides net.DefaultResolver.
    Resolver Resolver

    Logger *zap.Logger
}

// Source caches resolved seeds for Refresh. A failed lookup is logged and
// contributes no seeds.
type Source struct {
    opts  Options
    log   *zap.Logger
    mu    sync.Mutex
    last  time.Time
    cache []string
}

func New(opts Options) *Source {
    if opts.Port == 0 { opts.Port = 7946 }
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    if opts.Timeout <= 0 { opts.Timeout = 2 * time.Second }
    if opts.Resolver == nil { opts.Resolver = net.DefaultResolver }
    return &Source{opts: opts, log: logutil.OrNop(opts.Logger)}
}

// ParseNames splits a comma-separated list of names.
func ParseNames(csv string) []string { return discovery.Normalize(csv) }

func (s *Source) Seeds() []string {
    s.mu.Lock(); defer s.mu.Unlock()
    if len(s.cache) > 0 && time.Since(s.last) < s.opts.Refresh {
        return append([]string(nil), s.cache...)
    }
    ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
    defer cancel()
    s.cache = s.resolve(ctx)
    s.last = time.Now()
    return append([]string(nil), s.cache...)
}

func (s *Source) resolve(ctx context.Context) []string {
    var out []string
    for _, name := range s.opts.Names {
        name = strings.TrimSpace(name)
        switch {
        case name == "":
        case isSRV(name):
            out = append(out, s.lookupSRV(ctx, name)...)
        case isHostPort(name):
            out = append(out, name)
        default:
            out = append(out, s.lookupHost(ctx, name)...)
        }
    }
    return discovery.Normalize(out...)
}

func (s *Source) lookupSRV(ctx context.Context, fqdn string) []string {
    svc, proto, domain := parseSRVName(fqdn)
    if svc == "" || proto == "" || domain == "" {
        logutil.Warnf(s.log, "malformed SRV name %q", fqdn)
        return nil
    }
    _, addrs, err := s.opts.Resolver.LookupSRV(ctx, svc, proto, domain)
    if err != nil {
        logutil.Warnf(s.log, "lookup SRV %s: %v", fqdn, err)
        return nil
    }
    out := make([]string, 0, len(addrs))
    for _, a := range addrs {
        out = append(out, net.JoinHostPort(strings.TrimSuffix(a.Target, "."), strconv.Itoa(int(a.Port))))
    }
    return out
}

func (s *Source) lookupHost(ctx context.Context, host string) []string {
    ips, err := s.opts.Resolver.LookupHost(ctx, host)
    if err != nil {
        logutil.Warnf(s.log, "lookup %s: %v", host, err)
        return nil
    }
    out := make([]string, 0, len(ips))
    for _, ip := range ips { out = append(out, net.JoinHostPort(ip, strconv.Itoa(s.opts.Port))) }
    return out
}

func isSRV(name string) bool { return strings.HasPrefix(name, "_") && strings.Contains(name, "._") }

func isHostPort(name string) bool {
    _, port, err := net.SplitHostPort(name)
    return err == nil && port != ""
}

// parseSRVName splits "_service._proto.name".
func parseSRVName(fqdn string) (service, proto, name string) {
    parts := strings.SplitN(fqdn, ".", 3)
    if len(parts) < 3 { return "", "", "" }
    return strings.TrimPrefix(parts[0], "_"), strings.TrimPrefix(parts[1], "_"), parts[2]
}

var _ discovery.Discovery = (*Source)(nil)

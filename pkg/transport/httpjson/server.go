package httpjson

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "fmt"
    "net"
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"
    "go.uber.org/zap"

    "github.com/amirimatin/go-ensemble/internal/logutil"
    "github.com/amirimatin/go-ensemble/pkg/observability/tracing"
    "github.com/amirimatin/go-ensemble/pkg/transport"
)

// Server is a minimal HTTP server exposing the management endpoints plus
// /metrics and /healthz.
type Server struct {
    bind   string
    log    *zap.Logger
    tlsCfg *tls.Config

    mu  sync.Mutex
    srv *http.Server
    ln  net.Listener
}

// NewServer binds to the given TCP address (e.g., ":17946").
func NewServer(bind string, logger *zap.Logger) *Server {
    return &Server{bind: bind, log: logutil.OrNop(logger)}
}

// UseTLS enables TLS for the HTTP server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// Start launches the HTTP server. The server is shut down when the context
// is canceled.
func (s *Server) Start(ctx context.Context, h transport.Handlers) error {
    mux := http.NewServeMux()
    mux.HandleFunc("/status", s.get("http.status", h.Status))
    mux.HandleFunc("/connection", s.get("http.connection", h.Connection))
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    // Prometheus metrics
    mux.Handle("/metrics", promhttp.Handler())
    mux.HandleFunc("/reconcile", s.post("http.reconcile", h.Reconcile == nil, func(ctx context.Context, _ *http.Request) error {
        return h.Reconcile(ctx)
    }))
    mux.HandleFunc("/resources", s.post("http.resources", h.Resources == nil, func(ctx context.Context, _ *http.Request) error {
        return h.Resources(ctx)
    }))
    mux.HandleFunc("/rest", s.post("http.rest", h.Rest == nil, func(ctx context.Context, r *http.Request) error {
        var req transport.RestRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil { return badRequest{err} }
        return h.Rest(ctx, req.Enabled)
    }))

    ln, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    if s.tlsCfg != nil {
        ln = tls.NewListener(ln, s.tlsCfg)
    }
    srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
    s.mu.Lock()
    s.srv, s.ln = srv, ln
    s.mu.Unlock()

    go func() {
        <-ctx.Done()
        _ = s.Stop(context.Background())
    }()
    go func() {
        if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
            logutil.Errorf(s.log, "httpjson: server error: %v", err)
        }
    }()
    logutil.Infof(s.log, "management API listening on %s", ln.Addr())
    return nil
}

type badRequest struct{ err error }

func (b badRequest) Error() string { return "bad request: " + b.err.Error() }

func (s *Server) get(span string, fn transport.StatusFunc) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        if fn == nil { http.Error(w, "not supported", http.StatusNotImplemented); return }
        var err error
        ctx, end := tracing.StartSpan(r.Context(), span, &err)
        defer end()
        data, err := fn(ctx)
        if err != nil { http.Error(w, fmt.Sprintf("%s error: %v", r.URL.Path, err), http.StatusInternalServerError); return }
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write(data)
    }
}

func (s *Server) post(span string, missing bool, fn func(context.Context, *http.Request) error) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodPost { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        if missing { http.Error(w, "not supported", http.StatusNotImplemented); return }
        var err error
        ctx, end := tracing.StartSpan(r.Context(), span, &err)
        defer end()
        err = fn(ctx, r)
        w.Header().Set("Content-Type", "application/json")
        if err != nil {
            code := http.StatusServiceUnavailable
            if _, ok := err.(badRequest); ok { code = http.StatusBadRequest }
            w.WriteHeader(code)
            _ = json.NewEncoder(w).Encode(transport.Ack{Error: err.Error()})
            return
        }
        w.WriteHeader(http.StatusAccepted)
        _ = json.NewEncoder(w).Encode(transport.Ack{Accepted: true})
    }
}

// Addr returns the listening address once started, else the bind address.
func (s *Server) Addr() string {
    s.mu.Lock(); defer s.mu.Unlock()
    if s.ln != nil { return s.ln.Addr().String() }
    return s.bind
}

// Stop attempts a graceful shutdown with a short timeout.
func (s *Server) Stop(ctx context.Context) error {
    s.mu.Lock()
    srv := s.srv
    s.srv = nil
    s.mu.Unlock()
    if srv == nil { return nil }
    c, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    return srv.Shutdown(c)
}

var _ transport.RPCServer = (*Server)(nil)

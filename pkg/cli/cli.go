// Package cli provides the zkctl cobra commands: run a controller node and
// query or drive a running one over its management API.
package cli

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/spf13/cobra"
    "github.com/spf13/pflag"

    "github.com/amirimatin/go-ensemble/pkg/bootstrap"
    "github.com/amirimatin/go-ensemble/internal/logutil"
    "github.com/amirimatin/go-ensemble/pkg/observability/tracing"
    "github.com/amirimatin/go-ensemble/pkg/process"
    tlsx "github.com/amirimatin/go-ensemble/pkg/security/tlsconfig"
    "github.com/amirimatin/go-ensemble/pkg/transport"
    httpjson "github.com/amirimatin/go-ensemble/pkg/transport/httpjson"
)

// AddAll attaches the node subcommands to the provided root command.
func AddAll(root *cobra.Command) {
    root.AddCommand(NewRunCmd())
    root.AddCommand(NewStatusCmd())
    root.AddCommand(NewConnectionCmd())
    root.AddCommand(NewRestCmd())
    root.AddCommand(NewReconcileCmd())
    root.AddCommand(NewResourcesCmd())
}

// NewRunCmd returns the "run" command used to start a controller node.
func NewRunCmd() *cobra.Command {
    var (
        cfg         bootstrap.Config
        logLevel    string
        logJSON     bool
        traceEnable bool
        noSystemd   bool
    )
    cmd := &cobra.Command{
        Use:   "run",
        Short: "Run the ensemble controller for this node",
        RunE: func(cmd *cobra.Command, args []string) error {
            if cfg.NodeID == "" { return fmt.Errorf("missing --id") }
            if logJSON { logutil.SetJSON(true) }
            logger, err := logutil.New(logLevel)
            if err != nil { return fmt.Errorf("logger: %w", err) }
            defer func() { _ = logger.Sync() }()
            cfg.Logger = logger
            if noSystemd { cfg.Units = process.LogUnits{Logger: logger.Named("units")} }

            ctx, cancel := signalContext()
            defer cancel()

            if traceEnable {
                shutdown, err := tracing.Setup(true)
                if err != nil {
                    logutil.Warnf(logger, "tracing setup error: %v", err)
                } else {
                    defer func() { _ = shutdown(context.Background()) }()
                }
            }
            return bootstrap.Run(ctx, cfg)
        },
    }
    f := cmd.Flags()
    f.StringVar(&cfg.NodeID, "id", "", "gossip node id (required)")
    f.StringVar(&cfg.PeerID, "peer", "", "ensemble peer id (host); defaults to the advertise host")
    f.IntVar(&cfg.ServerID, "server-id", 0, "quorum server id of this node, written to myid and announced to peers (0 allocates locally)")
    f.StringVar(&cfg.OptionsFile, "options", "", "YAML options file")
    f.StringVar(&cfg.MemBind, "mem-bind", ":7946", "membership bind addr (host:port)")
    f.StringVar(&cfg.MemAdv, "mem-adv", "", "membership advertise addr (host:port, optional)")
    f.StringVar(&cfg.SeedsCSV, "join", "", "comma-separated seed nodes (host:port), used by discovery=static")
    f.StringVar(&cfg.MgmtAddr, "mgmt-addr", ":17946", "management HTTP address")
    f.StringVar(&cfg.DiscoveryKind, "discovery", "static", "discovery backend: static|file|dns")
    f.StringVar(&cfg.FilePath, "file-path", "", "path or glob to a file with seeds (one per line or CSV)")
    f.StringVar(&cfg.FileEnv, "file-env", "", "ENV var name containing CSV seeds; overrides file when set")
    f.StringVar(&cfg.DNSNames, "dns-names", "", "comma-separated SRV records or host names, used by discovery=dns")
    f.IntVar(&cfg.DNSPort, "dns-port", 7946, "gossip port for host name answers, used by discovery=dns")
    f.StringVar(&cfg.DataDir, "data", "", "directory for durable controller state (in-memory when empty)")
    f.DurationVar(&cfg.RetryInterval, "retry", 5*time.Second, "interval to re-offer unapplied peer events")
    f.DurationVar(&cfg.WatchDebounce, "watch-debounce", 250*time.Millisecond, "debounce for options/config file changes")
    f.BoolVar(&cfg.TLSEnable, "tls-enable", false, "enable (m)TLS for the management API")
    f.StringVar(&cfg.TLSCA, "tls-ca", "", "path to CA cert (PEM); requires client certs when set")
    f.StringVar(&cfg.TLSCert, "tls-cert", "", "path to node certificate (PEM)")
    f.StringVar(&cfg.TLSKey, "tls-key", "", "path to node private key (PEM)")
    f.StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
    f.BoolVar(&logJSON, "log-json", false, "log as JSON (also ZKCTL_LOG_JSON=1)")
    f.BoolVar(&traceEnable, "trace", false, "enable OpenTelemetry stdout tracing (dev)")
    f.BoolVar(&noSystemd, "no-systemd", false, "log unit start/stop instead of calling systemd (dev)")
    return cmd
}

// clientFlags are shared by the commands that talk to a running node.
type clientFlags struct {
    addr    string
    timeout time.Duration
    tls     tlsx.Options
}

func (c *clientFlags) register(f *pflag.FlagSet) {
    f.StringVar(&c.addr, "addr", "127.0.0.1:17946", "management address of a node (host:port)")
    f.DurationVar(&c.timeout, "timeout", 3*time.Second, "request timeout")
    f.BoolVar(&c.tls.Enable, "tls-enable", false, "use TLS for the management API")
    f.StringVar(&c.tls.CAFile, "tls-ca", "", "path to CA cert (PEM)")
    f.StringVar(&c.tls.CertFile, "tls-cert", "", "path to client certificate (PEM)")
    f.StringVar(&c.tls.KeyFile, "tls-key", "", "path to client private key (PEM)")
    f.BoolVar(&c.tls.InsecureSkipVerify, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    f.StringVar(&c.tls.ServerName, "tls-server-name", "", "expected server name (for TLS validation)")
}

func (c *clientFlags) client() (transport.RPCClient, error) {
    cli := httpjson.NewClient(c.timeout)
    cfg, err := c.tls.Client()
    if err != nil { return nil, fmt.Errorf("tls client config: %w", err) }
    if cfg != nil { cli.UseTLS(cfg) }
    return cli, nil
}

// call runs fn against the node with the request timeout applied.
func (c *clientFlags) call(fn func(ctx context.Context, cli transport.RPCClient) error) error {
    cli, err := c.client()
    if err != nil { return err }
    ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
    defer cancel()
    return fn(ctx, cli)
}

func newGetCmd(use, short string, get func(transport.RPCClient) func(context.Context, string) ([]byte, error)) *cobra.Command {
    var cf clientFlags
    cmd := &cobra.Command{
        Use:   use,
        Short: short,
        RunE: func(cmd *cobra.Command, args []string) error {
            return cf.call(func(ctx context.Context, cli transport.RPCClient) error {
                data, err := get(cli)(ctx, cf.addr)
                if err != nil { return fmt.Errorf("%s error: %w", use, err) }
                return writeLine(cmd.OutOrStdout(), data)
            })
        },
    }
    cf.register(cmd.Flags())
    return cmd
}

// NewStatusCmd returns the "status" command.
func NewStatusCmd() *cobra.Command {
    return newGetCmd("status", "Fetch node status as JSON", func(c transport.RPCClient) func(context.Context, string) ([]byte, error) { return c.GetStatus })
}

// NewConnectionCmd returns the "connection" command.
func NewConnectionCmd() *cobra.Command {
    return newGetCmd("connection", "Fetch client connection details as JSON", func(c transport.RPCClient) func(context.Context, string) ([]byte, error) { return c.GetConnection })
}

// NewRestCmd returns the "rest on|off" command.
func NewRestCmd() *cobra.Command {
    var cf clientFlags
    cmd := &cobra.Command{
        Use:       "rest on|off",
        Short:     "Enable or disable the REST service",
        Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
        ValidArgs: []string{"on", "off"},
        RunE: func(cmd *cobra.Command, args []string) error {
            req := transport.RestRequest{Enabled: args[0] == "on"}
            return cf.call(func(ctx context.Context, cli transport.RPCClient) error {
                ack, err := cli.PostRest(ctx, cf.addr, req)
                if err != nil { return fmt.Errorf("rest error: %w", err) }
                return json.NewEncoder(cmd.OutOrStdout()).Encode(ack)
            })
        },
    }
    cf.register(cmd.Flags())
    return cmd
}

func newPostCmd(use, short string, post func(transport.RPCClient) func(context.Context, string) (transport.Ack, error)) *cobra.Command {
    var cf clientFlags
    cmd := &cobra.Command{
        Use:   use,
        Short: short,
        RunE: func(cmd *cobra.Command, args []string) error {
            return cf.call(func(ctx context.Context, cli transport.RPCClient) error {
                ack, err := post(cli)(ctx, cf.addr)
                if err != nil { return fmt.Errorf("%s error: %w", use, err) }
                return json.NewEncoder(cmd.OutOrStdout()).Encode(ack)
            })
        },
    }
    cf.register(cmd.Flags())
    return cmd
}

// NewReconcileCmd returns the "reconcile" command.
func NewReconcileCmd() *cobra.Command {
    return newPostCmd("reconcile", "Re-evaluate bind address and rendered config", func(c transport.RPCClient) func(context.Context, string) (transport.Ack, error) { return c.PostReconcile })
}

// NewResourcesCmd returns the "resources" command.
func NewResourcesCmd() *cobra.Command {
    return newPostCmd("resources", "Retry install/start after resources were provided", func(c transport.RPCClient) func(context.Context, string) (transport.Ack, error) { return c.PostResources })
}

func writeLine(w io.Writer, data []byte) error {
    if _, err := w.Write(data); err != nil { return err }
    if len(data) == 0 || data[len(data)-1] != '\n' {
        _, err := w.Write([]byte("\n"))
        return err
    }
    return nil
}

func signalContext() (context.Context, context.CancelFunc) {
    return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

package cli

import (
    "bytes"
    "context"
    "sync"
    "testing"

    "github.com/spf13/cobra"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-ensemble/pkg/transport"
    httpjson "github.com/amirimatin/go-ensemble/pkg/transport/httpjson"
)

func newRoot() *cobra.Command {
    root := &cobra.Command{Use: "zkctl", SilenceUsage: true, SilenceErrors: true}
    AddAll(root)
    return root
}

func execute(t *testing.T, args ...string) (string, error) {
    t.Helper()
    root := newRoot()
    var out bytes.Buffer
    root.SetOut(&out)
    root.SetArgs(args)
    err := root.Execute()
    return out.String(), err
}

func TestCommands_AgainstServer(t *testing.T) {
    var (
        mu         sync.Mutex
        rest       []bool
        reconciles int
    )
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    srv := httpjson.NewServer("127.0.0.1:0", nil)
    require.NoError(t, srv.Start(ctx, transport.Handlers{
        Status:     func(context.Context) ([]byte, error) { return []byte(`{"state":"running"}`), nil },
        Connection: func(context.Context) ([]byte, error) { return []byte(`{"port":2181}`), nil },
        Reconcile:  func(context.Context) error { mu.Lock(); reconciles++; mu.Unlock(); return nil },
        Rest:       func(_ context.Context, on bool) error { mu.Lock(); rest = append(rest, on); mu.Unlock(); return nil },
    }))
    defer srv.Stop(context.Background())
    addr := srv.Addr()

    out, err := execute(t, "status", "--addr", addr)
    require.NoError(t, err)
    assert.Equal(t, "{\"state\":\"running\"}\n", out)

    out, err = execute(t, "connection", "--addr", addr)
    require.NoError(t, err)
    assert.JSONEq(t, `{"port":2181}`, out)

    out, err = execute(t, "reconcile", "--addr", addr)
    require.NoError(t, err)
    assert.JSONEq(t, `{"accepted":true}`, out)
    mu.Lock()
    assert.Equal(t, 1, reconciles)
    mu.Unlock()

    _, err = execute(t, "rest", "on", "--addr", addr)
    require.NoError(t, err)
    _, err = execute(t, "rest", "off", "--addr", addr)
    require.NoError(t, err)
    mu.Lock()
    assert.Equal(t, []bool{true, false}, rest)
    mu.Unlock()

    _, err = execute(t, "rest", "maybe", "--addr", addr)
    require.Error(t, err)

    _, err = execute(t, "resources", "--addr", addr, "--timeout", "200ms")
    require.Error(t, err)
}

func TestRun_RequiresID(t *testing.T) {
    _, err := execute(t, "run")
    require.EqualError(t, err, "missing --id")
}

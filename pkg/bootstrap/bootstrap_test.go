package bootstrap

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-ensemble/pkg/controller"
    "github.com/amirimatin/go-ensemble/pkg/transport"
    httpjson "github.com/amirimatin/go-ensemble/pkg/transport/httpjson"
)

type recordingUnits struct {
    mu    sync.Mutex
    calls []string
}

func (u *recordingUnits) StartUnit(_ context.Context, name string) error {
    u.mu.Lock(); defer u.mu.Unlock()
    u.calls = append(u.calls, "start "+name)
    return nil
}

func (u *recordingUnits) StopUnit(_ context.Context, name string) error {
    u.mu.Lock(); defer u.mu.Unlock()
    u.calls = append(u.calls, "stop "+name)
    return nil
}

func (u *recordingUnits) Close() {}

func (u *recordingUnits) has(call string) bool {
    u.mu.Lock(); defer u.mu.Unlock()
    for _, c := range u.calls {
        if c == call { return true }
    }
    return false
}

func testConfig(t *testing.T, units *recordingUnits) Config {
    t.Helper()
    dir := t.TempDir()
    optsFile := filepath.Join(dir, "options.yaml")
    rendered := filepath.Join(dir, "conf", "zoo.cfg")
    myid := filepath.Join(dir, "zk", "myid")
    body := fmt.Sprintf("rendered_config: %s\nmyid_file: %s\n", rendered, myid)
    require.NoError(t, os.WriteFile(optsFile, []byte(body), 0o644))
    return Config{
        NodeID:        "n1",
        PeerID:        "10.0.0.1",
        MemBind:       "127.0.0.1:0",
        MgmtAddr:      "127.0.0.1:0",
        OptionsFile:   optsFile,
        DataDir:       filepath.Join(dir, "data"),
        RetryInterval: 50 * time.Millisecond,
        WatchDebounce: 20 * time.Millisecond,
        Units:         units,
    }
}

func fetchStatus(t *testing.T, c *httpjson.Client, addr string) (controller.Status, bool) {
    t.Helper()
    b, err := c.GetStatus(context.Background(), addr)
    if err != nil { return controller.Status{}, false }
    var st controller.Status
    require.NoError(t, json.Unmarshal(b, &st))
    return st, true
}

func TestBuild_Validates(t *testing.T) {
    _, err := Build(context.Background(), Config{})
    require.Error(t, err)

    cfg := testConfig(t, &recordingUnits{})
    cfg.DiscoveryKind = "consul"
    _, err = Build(context.Background(), cfg)
    require.Error(t, err)

    cfg = testConfig(t, &recordingUnits{})
    cfg.ServerID = -1
    _, err = Build(context.Background(), cfg)
    require.Error(t, err)

    cfg = testConfig(t, &recordingUnits{})
    cfg.DiscoveryKind = "dns"
    cfg.DNSNames = "127.0.0.1:7946"
    n, err := Build(context.Background(), cfg)
    require.NoError(t, err)
    assert.Equal(t, []string{"127.0.0.1:7946"}, n.disc.Seeds())
    require.NoError(t, n.Close())
}

func TestNode_RunServesManagementAPI(t *testing.T) {
    units := &recordingUnits{}
    cfg := testConfig(t, units)
    n, err := Build(context.Background(), cfg)
    require.NoError(t, err)
    defer n.Close()

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan error, 1)
    go func() { done <- n.Run(ctx) }()

    client := httpjson.NewClient(time.Second)
    require.Eventually(t, func() bool {
        st, ok := fetchStatus(t, client, n.MgmtAddr())
        return ok && st.State == controller.StateRunning
    }, 5*time.Second, 20*time.Millisecond)
    assert.True(t, units.has("start zookeeper.service"))

    ack, err := client.PostRest(context.Background(), n.MgmtAddr(), transport.RestRequest{Enabled: true})
    require.NoError(t, err)
    assert.True(t, ack.Accepted)
    require.Eventually(t, func() bool {
        st, ok := fetchStatus(t, client, n.MgmtAddr())
        return ok && st.RestEnabled
    }, 5*time.Second, 20*time.Millisecond)
    assert.True(t, units.has("start zookeeper-rest.service"))

    _, err = client.PostReconcile(context.Background(), n.MgmtAddr())
    require.NoError(t, err)
    require.Eventually(t, func() bool {
        st, ok := fetchStatus(t, client, n.MgmtAddr())
        return ok && st.Message == "Ready (1 zk units: less than 3 is suboptimal)"
    }, 5*time.Second, 20*time.Millisecond)

    b, err := client.GetConnection(context.Background(), n.MgmtAddr())
    require.NoError(t, err)
    assert.JSONEq(t, `{"port":2181,"restPort":9998}`, string(b))

    cancel()
    select {
    case err := <-done:
        require.NoError(t, err)
    case <-time.After(5 * time.Second):
        t.Fatal("node did not stop")
    }
}

func TestNode_OptionsReloadTogglesRest(t *testing.T) {
    units := &recordingUnits{}
    cfg := testConfig(t, units)
    n, err := Build(context.Background(), cfg)
    require.NoError(t, err)
    defer n.Close()

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    go func() { _ = n.Run(ctx) }()
    require.Eventually(t, func() bool { return n.Controller().State() == controller.StateRunning }, 5*time.Second, 20*time.Millisecond)

    o := n.opts.Options()
    body := fmt.Sprintf("rendered_config: %s\nmyid_file: %s\nrest: true\n", o.RenderedConfig, o.MyIDFile)
    require.NoError(t, os.WriteFile(cfg.OptionsFile, []byte(body), 0o644))
    require.Eventually(t, func() bool { return n.Controller().Status().RestEnabled }, 5*time.Second, 20*time.Millisecond)
}

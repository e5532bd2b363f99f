package config

import (
    "context"
    "os"
    "path/filepath"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
    t.Helper()
    require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
    o, err := Load("")
    require.NoError(t, err)
    assert.Equal(t, Defaults(), o)
    require.NoError(t, o.Validate())
    assert.Equal(t, "2181", o.Values()[KeyClientPort])
    assert.Equal(t, "false", o.Values()[KeyRest])
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
    p := filepath.Join(t.TempDir(), "options.yaml")
    writeFile(t, p, "network_interface: eth1\nrest: true\nclient_port: 2182\nhooks:\n  open_ports: [\"ufw\", \"allow\", \"2181\"]\n")
    o, err := Load(p)
    require.NoError(t, err)
    assert.Equal(t, "eth1", o.NetworkInterface)
    assert.True(t, o.Rest)
    assert.Equal(t, 2182, o.ClientPort)
    assert.Equal(t, 9998, o.RestPort)
    assert.Equal(t, []string{"ufw", "allow", "2181"}, o.Hooks.OpenPorts)
}

func TestLoad_Invalid(t *testing.T) {
    dir := t.TempDir()
    bad := filepath.Join(dir, "bad.yaml")
    writeFile(t, bad, "client_port: [")
    _, err := Load(bad)
    require.Error(t, err)

    port := filepath.Join(dir, "port.yaml")
    writeFile(t, port, "rest_port: 70000\n")
    _, err = Load(port)
    require.Error(t, err)

    _, err = Load(filepath.Join(dir, "missing.yaml"))
    require.Error(t, err)
}

func TestFile_ReloadReportsChangedKeys(t *testing.T) {
    p := filepath.Join(t.TempDir(), "options.yaml")
    writeFile(t, p, "network_interface: eth0\n")
    f, err := Open(p, nil)
    require.NoError(t, err)
    assert.Equal(t, "eth0", f.Get(KeyNetworkInterface))

    changed, err := f.Reload()
    require.NoError(t, err)
    assert.Empty(t, changed)

    writeFile(t, p, "network_interface: eth1\nrest: true\n")
    changed, err = f.Reload()
    require.NoError(t, err)
    assert.Equal(t, []string{KeyNetworkInterface, KeyRest}, changed)
    assert.Equal(t, "true", f.Get(KeyRest))

    writeFile(t, p, "client_port: oops\n")
    _, err = f.Reload()
    require.Error(t, err)
    assert.Equal(t, "eth1", f.Get(KeyNetworkInterface))
}

func TestWatch_DebouncedChange(t *testing.T) {
    dir := t.TempDir()
    p := filepath.Join(dir, "zoo.cfg")
    writeFile(t, p, "tickTime=2000\n")
    other := filepath.Join(dir, "other.cfg")

    var hits atomic.Int32
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    w, err := Watch(ctx, WatchOptions{Files: []string{p}, Debounce: 50 * time.Millisecond, OnChange: func(path string) {
        assert.Equal(t, p, path)
        hits.Add(1)
    }})
    require.NoError(t, err)
    defer w.Close()

    writeFile(t, other, "x")
    for i := 0; i < 3; i++ { writeFile(t, p, "tickTime=2000\ninitLimit=10\n") }
    require.Eventually(t, func() bool { return hits.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
    time.Sleep(150 * time.Millisecond)
    assert.Equal(t, int32(1), hits.Load())
}

func TestWatch_RequiresCallback(t *testing.T) {
    _, err := Watch(context.Background(), WatchOptions{})
    require.Error(t, err)
}

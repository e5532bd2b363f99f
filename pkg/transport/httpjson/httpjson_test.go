package httpjson

import (
    "context"
    "errors"
    "net/http"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-ensemble/pkg/transport"
)

func startServer(t *testing.T, h transport.Handlers) *Server {
    t.Helper()
    ctx, cancel := context.WithCancel(context.Background())
    t.Cleanup(cancel)
    s := NewServer("127.0.0.1:0", nil)
    require.NoError(t, s.Start(ctx, h))
    t.Cleanup(func() { _ = s.Stop(context.Background()) })
    return s
}

func TestServerClient_RoundTrip(t *testing.T) {
    var reconciles, resources atomic.Int32
    var rest atomic.Value
    s := startServer(t, transport.Handlers{
        Status:     func(context.Context) ([]byte, error) { return []byte(`{"state":"running"}`), nil },
        Connection: func(context.Context) ([]byte, error) { return []byte(`{"port":2181}`), nil },
        Reconcile:  func(context.Context) error { reconciles.Add(1); return nil },
        Resources:  func(context.Context) error { resources.Add(1); return nil },
        Rest:       func(_ context.Context, enabled bool) error { rest.Store(enabled); return nil },
    })
    c := NewClient(time.Second)
    ctx := context.Background()

    b, err := c.GetStatus(ctx, s.Addr())
    require.NoError(t, err)
    assert.JSONEq(t, `{"state":"running"}`, string(b))

    b, err = c.GetConnection(ctx, s.Addr())
    require.NoError(t, err)
    assert.JSONEq(t, `{"port":2181}`, string(b))

    ack, err := c.PostReconcile(ctx, s.Addr())
    require.NoError(t, err)
    assert.True(t, ack.Accepted)
    assert.Equal(t, int32(1), reconciles.Load())

    _, err = c.PostResources(ctx, s.Addr())
    require.NoError(t, err)
    assert.Equal(t, int32(1), resources.Load())

    ack, err = c.PostRest(ctx, s.Addr(), transport.RestRequest{Enabled: true})
    require.NoError(t, err)
    assert.True(t, ack.Accepted)
    assert.Equal(t, true, rest.Load())
}

func TestServer_Errors(t *testing.T) {
    s := startServer(t, transport.Handlers{
        Status:    func(context.Context) ([]byte, error) { return nil, errors.New("boom") },
        Reconcile: func(context.Context) error { return errors.New("queue full") },
    })
    c := NewClient(time.Second)
    c.attempts = 1
    ctx := context.Background()

    _, err := c.GetStatus(ctx, s.Addr())
    require.Error(t, err)

    ack, err := c.PostReconcile(ctx, s.Addr())
    require.EqualError(t, err, "queue full")
    assert.False(t, ack.Accepted)

    _, err = c.PostRest(ctx, s.Addr(), transport.RestRequest{})
    require.Error(t, err)

    resp, err := http.Get("http://" + s.Addr() + "/reconcile")
    require.NoError(t, err)
    resp.Body.Close()
    assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

    resp, err = http.Get("http://" + s.Addr() + "/healthz")
    require.NoError(t, err)
    resp.Body.Close()
    assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_BadRestBody(t *testing.T) {
    s := startServer(t, transport.Handlers{Rest: func(context.Context, bool) error { return nil }})
    resp, err := http.Post("http://"+s.Addr()+"/rest", "application/json", http.NoBody)
    require.NoError(t, err)
    resp.Body.Close()
    assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

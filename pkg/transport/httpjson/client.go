package httpjson

import (
    "bytes"
    "context"
    "crypto/tls"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/amirimatin/go-ensemble/pkg/transport"
)

// Client is a thin HTTP client for the management API. It supports optional
// TLS configuration and simple retry with backoff for robustness.
type Client struct {
    httpc     *http.Client
    transport *http.Transport
    isTLS     bool
    attempts  int
}

// NewClient constructs a new Client with the given timeout.
func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    tr := &http.Transport{}
    return &Client{httpc: &http.Client{Timeout: timeout, Transport: tr}, transport: tr, attempts: 3}
}

// UseTLS sets the TLS config for the underlying HTTP client and switches the
// request scheme to https.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    if c.transport != nil { c.transport.TLSClientConfig = cfg }
    c.isTLS = cfg != nil
    return c
}

func (c *Client) url(addr, path string) string {
    scheme := "http"
    if c.isTLS { scheme = "https" }
    return fmt.Sprintf("%s://%s%s", scheme, addr, path)
}

func (c *Client) GetStatus(ctx context.Context, addr string) ([]byte, error) {
    return c.get(ctx, c.url(addr, "/status"))
}

func (c *Client) GetConnection(ctx context.Context, addr string) ([]byte, error) {
    return c.get(ctx, c.url(addr, "/connection"))
}

func (c *Client) PostReconcile(ctx context.Context, addr string) (transport.Ack, error) {
    return c.post(ctx, c.url(addr, "/reconcile"), nil)
}

func (c *Client) PostResources(ctx context.Context, addr string) (transport.Ack, error) {
    return c.post(ctx, c.url(addr, "/resources"), nil)
}

func (c *Client) PostRest(ctx context.Context, addr string, req transport.RestRequest) (transport.Ack, error) {
    body, err := json.Marshal(req)
    if err != nil { return transport.Ack{}, err }
    return c.post(ctx, c.url(addr, "/rest"), body)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
    var out []byte
    err := c.retry(ctx, func() (bool, error) {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
        if err != nil { return false, err }
        resp, err := c.httpc.Do(req)
        if err != nil { return true, err }
        defer resp.Body.Close()
        b, err := io.ReadAll(resp.Body)
        if err != nil { return true, err }
        if resp.StatusCode != http.StatusOK {
            return resp.StatusCode >= 500, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
        }
        out = b
        return false, nil
    })
    return out, err
}

func (c *Client) post(ctx context.Context, url string, body []byte) (transport.Ack, error) {
    var out transport.Ack
    err := c.retry(ctx, func() (bool, error) {
        req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
        if err != nil { return false, err }
        req.Header.Set("Content-Type", "application/json")
        resp, err := c.httpc.Do(req)
        if err != nil { return true, err }
        defer resp.Body.Close()
        b, _ := io.ReadAll(resp.Body)
        out = transport.Ack{}
        _ = json.Unmarshal(b, &out)
        if resp.StatusCode/100 != 2 {
            if out.Error != "" { return resp.StatusCode >= 500, errors.New(out.Error) }
            return resp.StatusCode >= 500, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
        }
        return false, nil
    })
    return out, err
}

// retry runs fn until it succeeds, reports a permanent failure, or the
// attempts run out, backing off 100ms, 200ms, ...
func (c *Client) retry(ctx context.Context, fn func() (retryable bool, err error)) error {
    var lastErr error
    for attempt := 0; attempt < c.attempts; attempt++ {
        again, err := fn()
        if err == nil { return nil }
        lastErr = err
        if !again { return err }
        // backoff unless context is done
        select {
        case <-ctx.Done():
            return lastErr
        case <-time.After(time.Duration(100*(1<<attempt)) * time.Millisecond):
        }
    }
    return lastErr
}

var _ transport.RPCClient = (*Client)(nil)

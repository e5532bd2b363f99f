// Package tlsconfig builds TLS configs for the management API.
package tlsconfig

import (
    "crypto/tls"
    "crypto/x509"
    "errors"
    "fmt"
    "os"
    "sync"

    "github.com/amirimatin/go-ensemble/pkg/changes"
)

// Options defines (m)TLS inputs. TLS is off when Enable is false.
type Options struct {
    Enable             bool
    CAFile             string
    CertFile           string
    KeyFile            string
    InsecureSkipVerify bool
    ServerName         string
}

// Server returns a server config, or nil when disabled. The certificate is
// reloaded on handshake once its files change on disk. With a CA file,
// clients must present a certificate signed by it.
func (o Options) Server() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    if o.CertFile == "" || o.KeyFile == "" {
        return nil, errors.New("tls: server cert/key required when TLS enabled")
    }
    r := &reloader{cert: o.CertFile, key: o.KeyFile, det: changes.New()}
    if _, err := r.get(); err != nil { return nil, err }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12, GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) { return r.get() }}
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.ClientCAs = pool
        cfg.ClientAuth = tls.RequireAndVerifyClientCert
    }
    return cfg, nil
}

// Client returns a client config, or nil when disabled.
func (o Options) Client() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: o.InsecureSkipVerify} //nolint:gosec
    if o.ServerName != "" { cfg.ServerName = o.ServerName }
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.RootCAs = pool
    }
    if o.CertFile != "" && o.KeyFile != "" {
        cert, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
        if err != nil { return nil, err }
        cfg.Certificates = []tls.Certificate{cert}
    }
    return cfg, nil
}

func loadPool(path string) (*x509.CertPool, error) {
    ca, err := os.ReadFile(path)
    if err != nil { return nil, err }
    pool := x509.NewCertPool()
    if !pool.AppendCertsFromPEM(ca) { return nil, fmt.Errorf("tls: no certificates in %s", path) }
    return pool, nil
}

// reloader caches a key pair until the content of either file changes.
type reloader struct {
    cert, key string
    mu        sync.Mutex
    det       *changes.Detector
    cached    *tls.Certificate
}

func (r *reloader) get() (*tls.Certificate, error) {
    r.mu.Lock(); defer r.mu.Unlock()
    fps, err := changes.Fingerprint(r.cert, r.key)
    if err != nil {
        if r.cached != nil { return r.cached, nil }
        return nil, err
    }
    if r.cached != nil && !r.det.FilesChanged(fps) { return r.cached, nil }
    cert, err := tls.LoadX509KeyPair(r.cert, r.key)
    if err != nil {
        // Keep serving the previous pair while a rotation is half written.
        if r.cached != nil { return r.cached, nil }
        return nil, err
    }
    r.cached = &cert
    r.det.CommitFiles(fps)
    return r.cached, nil
}

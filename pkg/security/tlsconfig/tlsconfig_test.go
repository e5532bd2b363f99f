package tlsconfig

import (
    "crypto/ecdsa"
    "crypto/elliptic"
    "crypto/rand"
    "crypto/x509"
    "crypto/x509/pkix"
    "encoding/pem"
    "math/big"
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func writePair(t *testing.T, dir, cn string) (string, string) {
    t.Helper()
    key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
    require.NoError(t, err)
    tmpl := &x509.Certificate{
        SerialNumber: big.NewInt(time.Now().UnixNano()),
        Subject:      pkix.Name{CommonName: cn},
        NotBefore:    time.Now().Add(-time.Hour),
        NotAfter:     time.Now().Add(time.Hour),
        DNSNames:     []string{cn},
    }
    der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
    require.NoError(t, err)
    kb, err := x509.MarshalECPrivateKey(key)
    require.NoError(t, err)
    certPath, keyPath := filepath.Join(dir, "tls.crt"), filepath.Join(dir, "tls.key")
    require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
    require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: kb}), 0o600))
    return certPath, keyPath
}

func TestDisabled(t *testing.T) {
    s, err := Options{}.Server()
    require.NoError(t, err)
    assert.Nil(t, s)
    c, err := Options{}.Client()
    require.NoError(t, err)
    assert.Nil(t, c)
}

func TestServer_RequiresPair(t *testing.T) {
    _, err := Options{Enable: true}.Server()
    require.Error(t, err)
}

func TestServer_ReloadsRotatedCertificate(t *testing.T) {
    dir := t.TempDir()
    certPath, keyPath := writePair(t, dir, "zk-0")
    cfg, err := Options{Enable: true, CertFile: certPath, KeyFile: keyPath}.Server()
    require.NoError(t, err)

    first, err := cfg.GetCertificate(nil)
    require.NoError(t, err)
    again, err := cfg.GetCertificate(nil)
    require.NoError(t, err)
    assert.Same(t, first, again)

    writePair(t, dir, "zk-0-rotated")
    rotated, err := cfg.GetCertificate(nil)
    require.NoError(t, err)
    assert.NotEqual(t, first.Certificate[0], rotated.Certificate[0])
}

func TestClient_CAPool(t *testing.T) {
    dir := t.TempDir()
    certPath, keyPath := writePair(t, dir, "zk-0")
    cfg, err := Options{Enable: true, CAFile: certPath, CertFile: certPath, KeyFile: keyPath, ServerName: "zk-0"}.Client()
    require.NoError(t, err)
    assert.NotNil(t, cfg.RootCAs)
    assert.Len(t, cfg.Certificates, 1)
    assert.Equal(t, "zk-0", cfg.ServerName)

    bad := filepath.Join(dir, "bad.pem")
    require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o600))
    _, err = Options{Enable: true, CAFile: bad}.Client()
    require.Error(t, err)
}

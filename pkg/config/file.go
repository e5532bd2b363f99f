package config

import (
    "bytes"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "sync"

    "go.uber.org/zap"

    "github.com/amirimatin/go-ensemble/pkg/changes"
    "github.com/amirimatin/go-ensemble/internal/logutil"
)

// File serves options from a YAML file and owns the rendered configuration
// artifact. It is safe for concurrent use.
type File struct {
    mu   sync.RWMutex
    path string
    opts Options
    log  *zap.Logger
}

// Open loads path; see Load.
func Open(path string, logger *zap.Logger) (*File, error) {
    o, err := Load(path)
    if err != nil { return nil, err }
    return &File{path: path, opts: o, log: logutil.OrNop(logger)}, nil
}

// NewStatic serves fixed options with no backing file.
func NewStatic(o Options) *File { return &File{opts: o, log: zap.NewNop()} }

func (f *File) Path() string { return f.path }

func (f *File) Options() Options {
    f.mu.RLock(); defer f.mu.RUnlock()
    return f.opts
}

func (f *File) Get(key string) string {
    f.mu.RLock(); defer f.mu.RUnlock()
    return f.opts.Values()[key]
}

// Reload re-reads the options file and returns the keys whose values moved,
// sorted. On error the previous options stay in effect.
func (f *File) Reload() ([]string, error) {
    if f.path == "" { return nil, nil }
    next, err := Load(f.path)
    if err != nil { return nil, err }
    f.mu.Lock()
    prev := f.opts.Values()
    f.opts = next
    f.mu.Unlock()

    var changed []string
    for k, v := range next.Values() {
        if prev[k] != v { changed = append(changed, k) }
    }
    sort.Strings(changed)
    if len(changed) > 0 { logutil.Infof(f.log, "options reloaded; changed: %v", changed) }
    return changed, nil
}

// RenderedConfigFingerprints covers the rendered configuration and, when set,
// the myid file; the service reads both at start.
func (f *File) RenderedConfigFingerprints() (changes.Fingerprints, error) {
    o := f.Options()
    if o.MyIDFile == "" { return changes.Fingerprint(o.RenderedConfig) }
    return changes.Fingerprint(o.RenderedConfig, o.MyIDFile)
}

// RenderQuorum rewrites the server list of the rendered configuration and
// this node's myid. Files are only replaced when their content changes; a
// myid of 0 leaves the myid file alone.
func (f *File) RenderQuorum(servers map[string]int, myid int) error {
    o := f.Options()
    if _, err := writeServers(o.RenderedConfig, servers, o.QuorumPort, o.ElectionPort); err != nil { return err }
    if myid <= 0 || o.MyIDFile == "" { return nil }
    _, err := writeIfChanged(o.MyIDFile, func([]byte) []byte { return RenderMyID(myid) })
    return err
}

func writeServers(path string, servers map[string]int, quorumPort, electionPort int) (bool, error) {
    return writeIfChanged(path, func(cur []byte) []byte { return RenderServers(cur, servers, quorumPort, electionPort) })
}

func writeIfChanged(path string, render func(cur []byte) []byte) (bool, error) {
    cur, err := os.ReadFile(path)
    if err != nil && !errors.Is(err, os.ErrNotExist) { return false, fmt.Errorf("config: read %s: %w", path, err) }
    next := render(cur)
    if bytes.Equal(cur, next) { return false, nil }
    if err := writeAtomic(path, next); err != nil { return false, err }
    return true, nil
}

func writeAtomic(path string, data []byte) error {
    dir := filepath.Dir(path)
    if err := os.MkdirAll(dir, 0o755); err != nil { return fmt.Errorf("config: mkdir %s: %w", dir, err) }
    tmp, err := os.CreateTemp(dir, ".render-*")
    if err != nil { return fmt.Errorf("config: temp file: %w", err) }
    defer os.Remove(tmp.Name())
    if _, err := tmp.Write(data); err != nil {
        tmp.Close()
        return fmt.Errorf("config: write %s: %w", tmp.Name(), err)
    }
    if err := tmp.Close(); err != nil { return err }
    if err := os.Chmod(tmp.Name(), 0o644); err != nil { return err }
    return os.Rename(tmp.Name(), path)
}

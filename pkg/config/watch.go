package config

import (
    "context"
    "errors"
    "path/filepath"
    "sync"
    "time"

    "github.com/fsnotify/fsnotify"
    "go.uber.org/zap"

    "github.com/amirimatin/go-ensemble/internal/logutil"
)

// WatchOptions configures a Watcher.
type WatchOptions struct {
    // Files to watch. Their parent directories are watched so atomic
    // replacements (rename over) are seen.
    Files []string
    // Debounce coalesces bursts of events per file; default 250ms.
    Debounce time.Duration
    // OnChange is called once per settled change with the cleaned path.
    OnChange func(path string)
    Logger   *zap.Logger
}

// Watcher reports content changes of a fixed set of files.
type Watcher struct {
    opts   WatchOptions
    log    *zap.Logger
    fw     *fsnotify.Watcher
    files  map[string]bool
    mu     sync.Mutex
    timers map[string]*time.Timer
    done   chan struct{}
    once   sync.Once
}

// Watch starts watching until ctx is done or Close is called.
func Watch(ctx context.Context, opts WatchOptions) (*Watcher, error) {
    if opts.OnChange == nil { return nil, errors.New("config: nil OnChange") }
    if opts.Debounce <= 0 { opts.Debounce = 250 * time.Millisecond }
    fw, err := fsnotify.NewWatcher()
    if err != nil { return nil, err }
    w := &Watcher{opts: opts, log: logutil.OrNop(opts.Logger), fw: fw, files: map[string]bool{}, timers: map[string]*time.Timer{}, done: make(chan struct{})}
    dirs := map[string]bool{}
    for _, f := range opts.Files {
        if f == "" { continue }
        p := filepath.Clean(f)
        w.files[p] = true
        dirs[filepath.Dir(p)] = true
    }
    for d := range dirs {
        // Continue with the other directories; a missing one is not fatal.
        if err := fw.Add(d); err != nil {
            logutil.Warnf(w.log, "cannot watch %s: %v", d, err)
            continue
        }
        logutil.Debugf(w.log, "watching %s", d)
    }
    go w.loop(ctx)
    return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
    defer w.Close()
    for {
        select {
        case <-ctx.Done():
            return
        case <-w.done:
            return
        case ev, ok := <-w.fw.Events:
            if !ok { return }
            p := filepath.Clean(ev.Name)
            if !w.files[p] { continue }
            if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 { continue }
            w.schedule(p)
        case err, ok := <-w.fw.Errors:
            if !ok { return }
            logutil.Warnf(w.log, "file watcher: %v", err)
        }
    }
}

func (w *Watcher) schedule(path string) {
    w.mu.Lock(); defer w.mu.Unlock()
    if t, ok := w.timers[path]; ok { t.Stop() }
    w.timers[path] = time.AfterFunc(w.opts.Debounce, func() {
        w.mu.Lock()
        delete(w.timers, path)
        w.mu.Unlock()
        select {
        case <-w.done:
            return
        default:
        }
        w.opts.OnChange(path)
    })
}

func (w *Watcher) Close() error {
    var err error
    w.once.Do(func() {
        close(w.done)
        w.mu.Lock()
        for _, t := range w.timers { t.Stop() }
        w.mu.Unlock()
        err = w.fw.Close()
    })
    return err
}

package file

import (
    "os"
    "path/filepath"
    "sort"
    "strings"
    "sync"

    "go.uber.org/zap"

    "github.com/amirimatin/go-ensemble/pkg/changes"
    "github.com/amirimatin/go-ensemble/pkg/discovery"
    "github.com/amirimatin/go-ensemble/internal/logutil"
)

// Options configures file/ENV-based discovery.
type Options struct {
    // Path to a seed file or a glob of seed files. One or more comma
    // separated seeds per line; "#" starts a comment.
    Path string
    // Env names an environment variable that overrides the files when set.
    Env    string
    Logger *zap.Logger
}

// Source re-reads its files only when their content changed.
type Source struct {
    opts  Options
    log   *zap.Logger
    mu    sync.Mutex
    det   *changes.Detector
    cache []string
}

func New(opts Options) *Source {
    return &Source{opts: opts, log: logutil.OrNop(opts.Logger), det: changes.New()}
}

func (s *Source) Seeds() []string {
    if s.opts.Env != "" {
        if v := strings.TrimSpace(os.Getenv(s.opts.Env)); v != "" { return discovery.Normalize(v) }
    }
    if s.opts.Path == "" { return nil }

    s.mu.Lock(); defer s.mu.Unlock()
    paths, err := filepath.Glob(s.opts.Path)
    if err != nil || len(paths) == 0 { paths = []string{s.opts.Path} }
    sort.Strings(paths)
    fps, err := changes.Fingerprint(paths...)
    if err != nil {
        logutil.Warnf(s.log, "seed files: %v", err)
        return append([]string(nil), s.cache...)
    }
    // A vanished file yields an empty fingerprint; seeds may go to none.
    if s.cache == nil || s.det.FilesChanged(fps) || s.filesetChanged(paths) {
        var lines []string
        for _, p := range paths {
            b, err := os.ReadFile(p)
            if err != nil { continue }
            lines = append(lines, strings.Split(string(b), "\n")...)
        }
        s.cache = discovery.Normalize(lines...)
        if s.cache == nil { s.cache = []string{} }
        s.det.CommitFiles(fps)
        s.det.Commit("paths", strings.Join(paths, "\n"))
        logutil.Debugf(s.log, "loaded %d seeds from %s", len(s.cache), s.opts.Path)
    }
    return append([]string(nil), s.cache...)
}

// filesetChanged reports whether the glob now matches a different set of files.
func (s *Source) filesetChanged(paths []string) bool {
    return s.det.Changed("paths", strings.Join(paths, "\n"))
}

var _ discovery.Discovery = (*Source)(nil)

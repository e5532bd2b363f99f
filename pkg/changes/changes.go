// Package changes tracks named watched values and file fingerprints and
// reports whether they moved since they were last committed.
//
// Detection and recording are separate steps: Changed peeks, Commit records.
// Callers commit only after acting on a change; until then the change keeps
// being reported.
package changes

import (
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "os"
)

// Fingerprints maps a file path to the hex SHA-256 of its content. A missing
// file has an empty fingerprint.
type Fingerprints map[string]string

// Detector holds the last committed value per name. It is not safe for
// concurrent use; the owner serializes access.
type Detector struct {
    values map[string]string
}

func New() *Detector { return &Detector{values: make(map[string]string)} }

// Changed reports whether value differs from the committed value of name.
// A name without a baseline is never reported as changed.
func (d *Detector) Changed(name, value string) bool {
    prev, ok := d.values[name]
    return ok && prev != value
}

// Commit records value as the baseline of name.
func (d *Detector) Commit(name, value string) { d.values[name] = value }

// Observe is Changed followed by Commit.
func (d *Detector) Observe(name, value string) bool {
    changed := d.Changed(name, value)
    d.Commit(name, value)
    return changed
}

// FilesChanged reports true when any path is newly seen or its fingerprint
// differs from the committed one.
func (d *Detector) FilesChanged(fps Fingerprints) bool {
    for path, fp := range fps {
        prev, ok := d.values[fileKey(path)]
        if !ok || prev != fp { return true }
    }
    return false
}

// CommitFiles records every fingerprint in fps.
func (d *Detector) CommitFiles(fps Fingerprints) {
    for path, fp := range fps { d.values[fileKey(path)] = fp }
}

// Forget drops the baseline of name.
func (d *Detector) Forget(name string) { delete(d.values, name) }

func fileKey(path string) string { return "file:" + path }

type snapshot struct {
    Version int               `json:"version"`
    Values  map[string]string `json:"values"`
}

// Snapshot encodes the committed values as JSON. encoding/json sorts map keys
// so equal states encode to equal bytes.
func (d *Detector) Snapshot() ([]byte, error) {
    return json.Marshal(snapshot{Version: 1, Values: d.values})
}

func (d *Detector) Restore(buf []byte) error {
    var s snapshot
    if err := json.Unmarshal(buf, &s); err != nil { return fmt.Errorf("changes: restore: %w", err) }
    d.values = make(map[string]string, len(s.Values))
    for k, v := range s.Values { d.values[k] = v }
    return nil
}

// Fingerprint hashes the content of each path.
func Fingerprint(paths ...string) (Fingerprints, error) {
    out := make(Fingerprints, len(paths))
    for _, p := range paths {
        if p == "" { continue }
        data, err := os.ReadFile(p)
        if errors.Is(err, os.ErrNotExist) {
            out[p] = ""
            continue
        }
        if err != nil { return nil, fmt.Errorf("changes: fingerprint %s: %w", p, err) }
        sum := sha256.Sum256(data)
        out[p] = hex.EncodeToString(sum[:])
    }
    return out, nil
}

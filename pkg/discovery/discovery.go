// Package discovery provides the gossip seed addresses a node joins on start.
package discovery

import (
    "sort"
    "strings"
)

// Discovery returns seed addresses in host:port form, sorted and unique.
type Discovery interface {
    Seeds() []string
}

// Normalize splits comma separated entries, drops blanks and "#" comments,
// and returns the unique seeds sorted.
func Normalize(entries ...string) []string {
    set := map[string]struct{}{}
    for _, e := range entries {
        if i := strings.IndexByte(e, '#'); i >= 0 { e = e[:i] }
        for _, p := range strings.Split(e, ",") {
            if p = strings.TrimSpace(p); p != "" { set[p] = struct{}{} }
        }
    }
    if len(set) == 0 { return nil }
    out := make([]string, 0, len(set))
    for s := range set { out = append(out, s) }
    sort.Strings(out)
    return out
}

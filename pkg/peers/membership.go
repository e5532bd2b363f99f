package peers

import (
    "context"
    "strconv"
)

// Gossip metadata keys.
const (
    // MetaPeer carries a node's ensemble peer id.
    MetaPeer = "peer"
    // MetaServerID carries a node's configured quorum server id.
    MetaServerID = "server_id"
)

// Member describes a node as seen by the gossip layer.
type Member struct {
    ID   string
    Addr string
    Meta map[string]string
}

// PeerID is the ensemble id the member announced, falling back to its gossip
// name.
func (m Member) PeerID() string {
    if p := m.Meta[MetaPeer]; p != "" { return p }
    return m.ID
}

// ServerID is the server id the member announced, 0 when absent or invalid.
func (m Member) ServerID() int {
    n, err := strconv.Atoi(m.Meta[MetaServerID])
    if err != nil || n < 0 { return 0 }
    return n
}

// Membership is the gossip/failure-detection layer that discovers peers and
// feeds their joins and departures into a Queue.
type Membership interface {
    Start(ctx context.Context) error
    Join(seeds []string) error
    Local() Member
    Members() []Member
    Leave() error
    Stop() error
}

// HealthReporter is optionally implemented by a Membership. Higher scores
// mean degraded health; -1 means not started.
type HealthReporter interface {
    HealthScore() int
}

package membership

import (
    "encoding/json"
    "fmt"
    "sort"
    "sync"

    base "github.com/amirimatin/go-ensemble/pkg/state"
)

type Role string

// RoleVoter is the only role the ensemble assigns today.
const RoleVoter Role = "voter"

// Peer is an ensemble member keyed by an opaque id (usually its address).
// ServerID is its numeric quorum id; it never changes once announced.
type Peer struct {
    ID       string `json:"id"`
    Role     Role   `json:"role"`
    ServerID int    `json:"serverId"`
    // Announced is set when ServerID came from the peer rather than from
    // local allocation.
    Announced bool `json:"announced,omitempty"`
}

// State is the in-memory membership record. The local node is seeded at
// construction, counts towards Size and cannot be removed.
type State struct {
    mu      sync.RWMutex
    self    string
    selfID  int
    version uint64
    peers   map[string]Peer
}

func New(self string) *State { return NewWithServerID(self, 0) }

// NewWithServerID seeds self with its configured server id; 0 allocates one.
func NewWithServerID(self string, sid int) *State {
    if sid < 0 { sid = 0 }
    s := &State{self: self, selfID: sid, peers: make(map[string]Peer)}
    s.seedSelfLocked()
    return s
}

func (s *State) AddPeer(id string) bool { return s.AddServer(id, 0) }

// AddServer adds id with the server id it announced. An id of 0, or one
// already announced by another peer, allocates the lowest free id. A known
// peer only changes id when its current one was allocated locally and it now
// announces its own.
func (s *State) AddServer(id string, sid int) bool {
    if id == "" { return false }
    if sid < 0 { sid = 0 }
    s.mu.Lock(); defer s.mu.Unlock()
    p, known := s.peers[id]
    if known {
        if id == s.self || p.Announced || sid == 0 || sid == p.ServerID || s.announcedHolderLocked(sid, id) { return false }
    } else {
        p = Peer{ID: id, Role: RoleVoter}
    }
    if sid > 0 && !s.announcedHolderLocked(sid, id) {
        p.ServerID, p.Announced = sid, true
        s.peers[id] = p
        s.evictLocked(id, sid)
    } else {
        p.ServerID = s.freeLocked()
        s.peers[id] = p
    }
    s.version++
    return true
}

func (s *State) RemovePeer(id string) bool {
    if id == "" || id == s.self { return false }
    s.mu.Lock(); defer s.mu.Unlock()
    if _, ok := s.peers[id]; !ok { return false }
    delete(s.peers, id)
    s.version++
    return true
}

func (s *State) Contains(id string) bool {
    s.mu.RLock(); defer s.mu.RUnlock()
    _, ok := s.peers[id]
    return ok
}

func (s *State) Size() int {
    s.mu.RLock(); defer s.mu.RUnlock()
    return len(s.peers)
}

func (s *State) Version() uint64 {
    s.mu.RLock(); defer s.mu.RUnlock()
    return s.version
}

func (s *State) Self() string { return s.self }

// ServerID returns the quorum id of peer id, 0 when unknown.
func (s *State) ServerID(id string) int {
    s.mu.RLock(); defer s.mu.RUnlock()
    return s.peers[id].ServerID
}

// Servers maps every peer id to its quorum id.
func (s *State) Servers() map[string]int {
    s.mu.RLock(); defer s.mu.RUnlock()
    out := make(map[string]int, len(s.peers))
    for id, p := range s.peers { out[id] = p.ServerID }
    return out
}

// Snapshot returns peer ids sorted so that anything rendered from them is
// byte-stable while membership is unchanged.
func (s *State) Snapshot() []string {
    s.mu.RLock(); defer s.mu.RUnlock()
    out := make([]string, 0, len(s.peers))
    for id := range s.peers { out = append(out, id) }
    sort.Strings(out)
    return out
}

// Peers returns the peers sorted by id.
func (s *State) Peers() []Peer {
    s.mu.RLock(); defer s.mu.RUnlock()
    return s.sortedLocked()
}

func (s *State) sortedLocked() []Peer {
    arr := make([]Peer, 0, len(s.peers))
    for _, v := range s.peers { arr = append(arr, v) }
    sort.Slice(arr, func(i, j int) bool { return arr[i].ID < arr[j].ID })
    return arr
}

type encoded struct {
    Format  int    `json:"format"`
    Version uint64 `json:"version"`
    Peers   []Peer `json:"peers"`
}

// Marshal encodes state as stable JSON for persistence.
func (s *State) Marshal() ([]byte, error) {
    s.mu.RLock(); defer s.mu.RUnlock()
    return json.Marshal(encoded{Format: 2, Version: s.version, Peers: s.sortedLocked()})
}

func (s *State) Restore(buf []byte) error {
    var snap encoded
    if err := json.Unmarshal(buf, &snap); err != nil {
        return fmt.Errorf("state: restore membership: %w", err)
    }
    if snap.Format != 1 && snap.Format != 2 { return fmt.Errorf("state: unsupported membership format %d", snap.Format) }
    s.mu.Lock(); defer s.mu.Unlock()
    s.peers = make(map[string]Peer, len(snap.Peers)+1)
    for _, p := range snap.Peers {
        if p.ID == "" { continue }
        if p.Role == "" { p.Role = RoleVoter }
        s.peers[p.ID] = p
    }
    // Format 1 records carry no server ids.
    seen := make(map[int]bool, len(s.peers))
    var missing []string
    for _, p := range s.sortedLocked() {
        if p.ServerID <= 0 || seen[p.ServerID] {
            missing = append(missing, p.ID)
            continue
        }
        seen[p.ServerID] = true
    }
    for _, id := range missing {
        p := s.peers[id]
        p.ServerID, p.Announced = 0, false
        s.peers[id] = p
    }
    for _, id := range missing {
        p := s.peers[id]
        p.ServerID = s.freeLocked()
        s.peers[id] = p
    }
    s.seedSelfLocked()
    s.version = snap.Version
    return nil
}

func (s *State) seedSelfLocked() {
    if s.self == "" { return }
    p := s.peers[s.self]
    p.ID, p.Role = s.self, RoleVoter
    if s.selfID > 0 {
        p.ServerID, p.Announced = s.selfID, true
        s.peers[s.self] = p
        s.evictLocked(s.self, s.selfID)
        return
    }
    if p.ServerID == 0 || s.holderLocked(p.ServerID, s.self) {
        p.ServerID, p.Announced = s.freeLocked(), false
    }
    s.peers[s.self] = p
}

func (s *State) holderLocked(sid int, except string) bool {
    for id, p := range s.peers {
        if id != except && p.ServerID == sid { return true }
    }
    return false
}

func (s *State) announcedHolderLocked(sid int, except string) bool {
    for id, p := range s.peers {
        if id != except && p.ServerID == sid && (p.Announced || id == s.self) { return true }
    }
    return false
}

// evictLocked moves every other peer holding sid to a free id.
func (s *State) evictLocked(owner string, sid int) {
    var moved []string
    for _, p := range s.sortedLocked() {
        if p.ID != owner && p.ServerID == sid { moved = append(moved, p.ID) }
    }
    for _, id := range moved {
        p := s.peers[id]
        p.ServerID, p.Announced = 0, false
        s.peers[id] = p
        p.ServerID = s.freeLocked()
        s.peers[id] = p
    }
}

func (s *State) freeLocked() int {
    used := make(map[int]bool, len(s.peers))
    for _, p := range s.peers { used[p.ServerID] = true }
    n := 1
    for used[n] { n++ }
    return n
}

// Ensure interface satisfaction at compile-time.
var _ base.MembershipState = (*State)(nil)

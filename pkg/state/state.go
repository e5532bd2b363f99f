package state

// MembershipState is the record of ensemble peers. Add and remove are
// idempotent: a no-op returns false and leaves the version untouched. Every
// peer holds a positive server id unique within the record.
type MembershipState interface {
    AddPeer(id string) bool
    AddServer(id string, serverID int) bool
    RemovePeer(id string) bool
    Contains(id string) bool
    Size() int
    Snapshot() []string
    ServerID(id string) int
    Servers() map[string]int
    Version() uint64
    Marshal() ([]byte, error)
    Restore(buf []byte) error
}

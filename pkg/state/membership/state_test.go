package membership

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestState_AddPeerIdempotent(t *testing.T) {
    s := New("zk-0")
    assert.Equal(t, 1, s.Size())
    assert.Equal(t, uint64(0), s.Version())

    assert.True(t, s.AddPeer("zk-1"))
    assert.False(t, s.AddPeer("zk-1"))
    assert.Equal(t, 2, s.Size())
    assert.Equal(t, uint64(1), s.Version(), "version bumps once per applied add")
    assert.Equal(t, []string{"zk-0", "zk-1"}, s.Snapshot())
}

func TestState_RemovePeerIdempotent(t *testing.T) {
    s := New("zk-0")
    s.AddPeer("zk-1")
    assert.True(t, s.RemovePeer("zk-1"))
    assert.False(t, s.RemovePeer("zk-1"))
    assert.False(t, s.RemovePeer("never-joined"))
    assert.Equal(t, uint64(2), s.Version())
    assert.Equal(t, 1, s.Size())
}

func TestState_SelfIsPinned(t *testing.T) {
    s := New("zk-0")
    assert.False(t, s.AddPeer("zk-0"))
    assert.False(t, s.RemovePeer("zk-0"))
    assert.True(t, s.Contains("zk-0"))
    assert.Equal(t, uint64(0), s.Version())
}

func TestState_EmptyIDIgnored(t *testing.T) {
    s := New("")
    assert.False(t, s.AddPeer(""))
    assert.False(t, s.RemovePeer(""))
    assert.Equal(t, 0, s.Size())
}

func TestState_SnapshotSorted(t *testing.T) {
    orders := [][]string{{"c", "a", "b"}, {"b", "c", "a"}, {"a", "b", "c"}}
    for _, order := range orders {
        s := New("")
        for _, id := range order { s.AddPeer(id) }
        assert.Equal(t, []string{"a", "b", "c"}, s.Snapshot(), "insertion order %v", order)
    }
}

func TestState_MarshalRestore(t *testing.T) {
    s := New("zk-0")
    s.AddPeer("zk-2")
    s.AddPeer("zk-1")
    buf, err := s.Marshal()
    require.NoError(t, err)

    s2 := New("zk-0")
    require.NoError(t, s2.Restore(buf))
    assert.Equal(t, s.Snapshot(), s2.Snapshot())
    assert.Equal(t, uint64(2), s2.Version())

    buf2, err := s2.Marshal()
    require.NoError(t, err)
    assert.Equal(t, string(buf), string(buf2), "round trip is byte-stable")
}

func TestState_RestoreKeepsSelf(t *testing.T) {
    other := New("zk-9")
    buf, err := other.Marshal()
    require.NoError(t, err)

    s := New("zk-0")
    require.NoError(t, s.Restore(buf))
    assert.Equal(t, []string{"zk-0", "zk-9"}, s.Snapshot())
}

func TestState_RestoreRejectsGarbage(t *testing.T) {
    s := New("zk-0")
    assert.Error(t, s.Restore([]byte("not json")))
    assert.Error(t, s.Restore([]byte(`{"format":7}`)))
}

func TestState_ServerIDsStableAcrossJoins(t *testing.T) {
    s := New("10.0.0.5")
    assert.Equal(t, 1, s.ServerID("10.0.0.5"))

    // A peer sorting earlier must not renumber existing members.
    s.AddPeer("10.0.0.1")
    s.AddPeer("10.0.0.9")
    assert.Equal(t, map[string]int{"10.0.0.5": 1, "10.0.0.1": 2, "10.0.0.9": 3}, s.Servers())

    // A freed id is reused by the next join.
    s.RemovePeer("10.0.0.1")
    s.AddPeer("10.0.0.0")
    assert.Equal(t, 2, s.ServerID("10.0.0.0"))
    assert.Equal(t, 1, s.ServerID("10.0.0.5"))
    assert.Equal(t, 3, s.ServerID("10.0.0.9"))
}

func TestState_AnnouncedServerID(t *testing.T) {
    s := NewWithServerID("zk-1", 1)
    assert.True(t, s.AddServer("zk-3", 3))
    assert.Equal(t, 3, s.ServerID("zk-3"))

    // Locally allocated id is replaced once the peer announces its own.
    assert.True(t, s.AddPeer("zk-2"))
    assert.Equal(t, 2, s.ServerID("zk-2"))
    assert.True(t, s.AddServer("zk-2", 7))
    assert.Equal(t, 7, s.ServerID("zk-2"))

    // Announced ids never move, and duplicates are no-ops.
    assert.False(t, s.AddServer("zk-2", 9))
    assert.False(t, s.AddServer("zk-3", 3))
    assert.Equal(t, 7, s.ServerID("zk-2"))

    // An announced id taken by another announced peer falls back to allocation.
    assert.True(t, s.AddServer("zk-4", 3))
    assert.Equal(t, 2, s.ServerID("zk-4"))
    assert.Equal(t, 3, s.ServerID("zk-3"))
}

func TestState_AnnouncedIDEvictsAllocated(t *testing.T) {
    s := NewWithServerID("zk-1", 1)
    s.AddPeer("zk-x")
    assert.Equal(t, 2, s.ServerID("zk-x"))

    assert.True(t, s.AddServer("zk-2", 2))
    assert.Equal(t, 2, s.ServerID("zk-2"))
    assert.Equal(t, 3, s.ServerID("zk-x"))
}

func TestState_RestoreKeepsServerIDs(t *testing.T) {
    s := NewWithServerID("zk-1", 1)
    s.AddServer("zk-3", 3)
    s.AddPeer("zk-0")
    buf, err := s.Marshal()
    require.NoError(t, err)

    s2 := NewWithServerID("zk-1", 1)
    require.NoError(t, s2.Restore(buf))
    assert.Equal(t, s.Servers(), s2.Servers())
}

func TestState_RestoreAllocatesForLegacyRecords(t *testing.T) {
    legacy := []byte(`{"format":1,"version":2,"peers":[{"id":"b","role":"voter"},{"id":"a","role":"voter"}]}`)
    s := New("a")
    require.NoError(t, s.Restore(legacy))
    assert.Equal(t, map[string]int{"a": 1, "b": 2}, s.Servers())
    assert.Equal(t, uint64(2), s.Version())
}

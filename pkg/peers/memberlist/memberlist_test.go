package memberlist

import (
    "context"
    "encoding/json"
    "strings"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-ensemble/pkg/controller"
    "github.com/amirimatin/go-ensemble/pkg/peers"
)

func TestNew_Validates(t *testing.T) {
    _, err := New(Options{Bind: "127.0.0.1:0", Queue: peers.NewQueue("a")})
    require.Error(t, err)
    _, err = New(Options{NodeID: "a", Queue: peers.NewQueue("a")})
    require.Error(t, err)
    _, err = New(Options{NodeID: "a", Bind: "127.0.0.1:0"})
    require.Error(t, err)
}

func TestMemberlist_StartLocal(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    n, q := startNode(t, ctx, "n1", "10.0.0.1:2888")
    defer n.Stop()

    local := n.Local()
    assert.Equal(t, "n1", local.ID)
    assert.Equal(t, "10.0.0.1:2888", local.PeerID())
    assert.GreaterOrEqual(t, n.HealthScore(), 0)
    // The local join is about self and is not queued.
    assert.Equal(t, 0, q.Len())
}

func TestMemberlist_JoinAndLeaveQueuePeerEvents(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
    defer cancel()

    n1, q1 := startNode(t, ctx, "n1", "zk-1")
    defer n1.Stop()
    q2 := peers.NewQueue("zk-2")
    n2, err := New(Options{NodeID: "n2", PeerID: "zk-2", ServerID: 2, Bind: "127.0.0.1:0", Queue: q2, ProbeInterval: 100 * time.Millisecond, SuspicionMult: 2})
    require.NoError(t, err)
    require.NoError(t, n2.Start(ctx))
    defer n2.Stop()
    require.NoError(t, n2.Join([]string{n1.Local().Addr}))

    require.Eventually(t, func() bool { return hasPeer(q1, controller.KindPeerJoined, "zk-2") }, 5*time.Second, 20*time.Millisecond)
    for _, ev := range q1.Pending() {
        if e, ok := ev.(controller.PeerJoined); ok && e.Peer == "zk-2" {
            assert.Equal(t, 2, e.ServerID)
        }
    }

    _ = n2.Leave()
    _ = n2.Stop()
    require.Eventually(t, func() bool { return hasPeer(q1, controller.KindPeerDeparted, "zk-2") }, 5*time.Second, 20*time.Millisecond)
    assert.Len(t, n1.Members(), 1)
}

func startNode(t *testing.T, ctx context.Context, id, peer string) (*Node, *peers.Queue) {
    t.Helper()
    q := peers.NewQueue(peer)
    n, err := New(Options{NodeID: id, PeerID: peer, Bind: "127.0.0.1:0", Queue: q, ProbeInterval: 100 * time.Millisecond, SuspicionMult: 2})
    require.NoError(t, err)
    require.NoError(t, n.Start(ctx))
    require.NotEmpty(t, n.Local().Addr)
    return n, q
}

func hasPeer(q *peers.Queue, kind controller.EventKind, peer string) bool {
    for _, ev := range q.Pending() {
        if ev.Kind() != kind { continue }
        switch e := ev.(type) {
        case controller.PeerJoined:
            if e.Peer == peer { return true }
        case controller.PeerDeparted:
            if e.Peer == peer { return true }
        }
    }
    return false
}

func TestEncodeMeta_DropsOptionalKeysOverLimit(t *testing.T) {
    meta := map[string]string{peers.MetaPeer: "zk-1", peers.MetaServerID: "1", "note": strings.Repeat("x", 600)}
    b, err := encodeMeta(meta, 512, nil)
    require.NoError(t, err)
    var got map[string]string
    require.NoError(t, json.Unmarshal(b, &got))
    assert.Equal(t, map[string]string{peers.MetaPeer: "zk-1", peers.MetaServerID: "1"}, got)

    _, err = encodeMeta(map[string]string{peers.MetaPeer: strings.Repeat("p", 600)}, 512, nil)
    require.Error(t, err)
}

func TestNodeMeta_NeverCutsDocument(t *testing.T) {
    d := &nodeDelegate{meta: []byte(`{"peer":"zk-1"}`)}
    assert.Equal(t, d.meta, d.NodeMeta(512))
    assert.Nil(t, d.NodeMeta(4))
}

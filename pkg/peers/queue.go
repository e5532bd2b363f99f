// Package peers holds peer join and departure notifications until the
// controller dismisses them.
package peers

import (
    "sync"

    "github.com/google/uuid"

    "github.com/amirimatin/go-ensemble/pkg/controller"
)

// Queue is a controller.PeerEventSource. Each notification gets a unique
// marker and stays pending, and is redelivered by Pending, until dismissed.
type Queue struct {
    mu      sync.Mutex
    self    string
    pending []controller.Event
    notify  chan struct{}
}

// NewQueue ignores notifications about self.
func NewQueue(self string) *Queue {
    return &Queue{self: self, notify: make(chan struct{}, 1)}
}

// Joined queues one PeerJoined per peer and returns their markers.
func (q *Queue) Joined(peers ...string) []string {
    return q.push(peers, func(marker, peer string) controller.Event {
        return controller.PeerJoined{Marker: marker, Peer: peer}
    })
}

// JoinedServer queues a PeerJoined carrying the server id the peer announced
// and returns its marker, empty when peer is self.
func (q *Queue) JoinedServer(peer string, serverID int) string {
    markers := q.push([]string{peer}, func(marker, peer string) controller.Event {
        return controller.PeerJoined{Marker: marker, Peer: peer, ServerID: serverID}
    })
    if len(markers) == 0 { return "" }
    return markers[0]
}

// Departed queues one PeerDeparted per peer and returns their markers.
func (q *Queue) Departed(peers ...string) []string {
    return q.push(peers, func(marker, peer string) controller.Event {
        return controller.PeerDeparted{Marker: marker, Peer: peer}
    })
}

func (q *Queue) push(peers []string, mk func(marker, peer string) controller.Event) []string {
    var markers []string
    q.mu.Lock()
    for _, p := range peers {
        if p == "" || p == q.self { continue }
        m := uuid.NewString()
        q.pending = append(q.pending, mk(m, p))
        markers = append(markers, m)
    }
    q.mu.Unlock()
    if len(markers) > 0 {
        select {
        case q.notify <- struct{}{}:
        default:
            // a wakeup is already pending
        }
    }
    return markers
}

func (q *Queue) Pending() []controller.Event {
    q.mu.Lock(); defer q.mu.Unlock()
    return append([]controller.Event(nil), q.pending...)
}

func (q *Queue) Notify() <-chan struct{} { return q.notify }

// Dismiss drops the event with marker. Unknown markers are ignored, so a
// repeated dismissal is harmless.
func (q *Queue) Dismiss(marker string) {
    q.mu.Lock(); defer q.mu.Unlock()
    for i, ev := range q.pending {
        if markerOf(ev) == marker {
            q.pending = append(q.pending[:i], q.pending[i+1:]...)
            return
        }
    }
}

func (q *Queue) Len() int {
    q.mu.Lock(); defer q.mu.Unlock()
    return len(q.pending)
}

func markerOf(ev controller.Event) string {
    switch e := ev.(type) {
    case controller.PeerJoined:
        return e.Marker
    case controller.PeerDeparted:
        return e.Marker
    }
    return ""
}

var _ controller.PeerEventSource = (*Queue)(nil)

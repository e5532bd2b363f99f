package controller

type EventKind string

const (
    KindResourcesChanged EventKind = "resources_changed"
    KindConfigChanged    EventKind = "config_changed"
    KindPeerJoined       EventKind = "peer_joined"
    KindPeerDeparted     EventKind = "peer_departed"
    KindRestToggled      EventKind = "rest_toggled"
)

// Event is one of ResourcesChanged, ConfigChanged, PeerJoined, PeerDeparted
// or RestToggled.
type Event interface {
    Kind() EventKind
}

// ResourcesChanged re-attempts lifecycle convergence (install, start).
type ResourcesChanged struct{}

// ConfigChanged asks the controller to re-evaluate the bind address and the
// rendered configuration.
type ConfigChanged struct{}

// RestToggled sets the desired state of the REST sub-service.
type RestToggled struct {
    Enabled bool
}

// PeerJoined carries one joined peer. Marker identifies the pending event at
// its source and is dismissed once the join is applied. ServerID is the id
// the peer announced, 0 when it announced none.
type PeerJoined struct {
    Marker   string
    Peer     string
    ServerID int
}

// PeerDeparted carries one departed peer.
type PeerDeparted struct {
    Marker string
    Peer   string
}

func (ResourcesChanged) Kind() EventKind { return KindResourcesChanged }
func (ConfigChanged) Kind() EventKind    { return KindConfigChanged }
func (RestToggled) Kind() EventKind      { return KindRestToggled }
func (PeerJoined) Kind() EventKind       { return KindPeerJoined }
func (PeerDeparted) Kind() EventKind     { return KindPeerDeparted }

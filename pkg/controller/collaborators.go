package controller

import (
    "context"

    "github.com/amirimatin/go-ensemble/pkg/changes"
)

// Process drives the coordination service on this node. Every call either
// succeeds or returns an error; none is retried by the controller.
type Process interface {
    VerifyResources(ctx context.Context) bool
    Install(ctx context.Context) error
    InitialConfig(ctx context.Context) error
    Start(ctx context.Context) error
    Stop(ctx context.Context) error
    OpenPorts(ctx context.Context) error
    UpdateBindAddress(ctx context.Context) error
    StartRest(ctx context.Context) error
    StopRest(ctx context.Context) error
    // CurrentPeerCount is the ensemble size as the running service sees it.
    CurrentPeerCount(ctx context.Context) (int, error)
}

// ConfigSource exposes charm-style options and the fingerprints of the
// rendered configuration artifact. The artifact format belongs to the source.
type ConfigSource interface {
    Get(key string) string
    RenderedConfigFingerprints() (changes.Fingerprints, error)
}

// QuorumRenderer is optionally implemented by a ConfigSource that renders the
// server list into the configuration artifact. servers maps each peer to its
// server id; myid is this node's.
type QuorumRenderer interface {
    RenderQuorum(servers map[string]int, myid int) error
}

// PeerEventSource delivers peer events until they are dismissed. Pending
// returns undismissed PeerJoined/PeerDeparted events oldest first; Notify
// fires when new events arrive.
type PeerEventSource interface {
    Pending() []Event
    Notify() <-chan struct{}
    Dismiss(marker string)
}

// Persister stores controller records by key; Load returns an error wrapping
// store.ErrNotFound for unknown keys.
type Persister interface {
    Load(key string) ([]byte, error)
    Save(key string, value []byte) error
}

// Config keys read by the controller.
const (
    KeyNetworkInterface = "network_interface"
    KeyClientPort       = "client_port"
    KeyRestPort         = "rest_port"
)

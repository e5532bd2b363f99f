package controller

import (
    "errors"
    "time"

    "go.uber.org/zap"

    "github.com/amirimatin/go-ensemble/pkg/status"
)

// Options carries the collaborators and tuning for a Controller.
type Options struct {
    // Self is this node's peer id; it always counts as an ensemble member.
    Self string
    // ServerID is this node's quorum id; 0 allocates one locally.
    ServerID int
    // Process drives the coordination service (required).
    Process Process
    // Config supplies options and rendered config fingerprints (required).
    Config ConfigSource
    // Peers is dismissed after each applied peer event. Optional.
    Peers PeerEventSource
    // Status receives every published status (required).
    Status status.Sink
    // Persister keeps lifecycle flags, watched values and membership. A
    // process-local store is used when nil.
    Persister Persister
    // ResolveHost maps a network interface name to an address for the client
    // connection info. Optional.
    ResolveHost func(iface string) (string, error)
    // RetryInterval re-offers undismissed peer events in Run; default 5s.
    RetryInterval time.Duration
    Logger *zap.Logger
}

func (o Options) Validate() error {
    if o.Self == "" {
        return errors.New("controller: empty Self")
    }
    if o.Process == nil {
        return errors.New("controller: nil Process")
    }
    if o.Config == nil {
        return errors.New("controller: nil Config")
    }
    if o.Status == nil {
        return errors.New("controller: nil Status sink")
    }
    if o.ServerID < 0 {
        return errors.New("controller: negative ServerID")
    }
    if o.RetryInterval < 0 {
        return errors.New("controller: negative RetryInterval")
    }
    return nil
}

package controller

import (
    "time"

    "github.com/amirimatin/go-ensemble/pkg/quorum"
    "github.com/amirimatin/go-ensemble/pkg/status"
)

// State is the controller's lifecycle position.
type State string

const (
    StateUninstalled State = "uninstalled"
    StateInstalled   State = "installed"
    StateRunning     State = "running"
    StateRestarting  State = "restarting"
    StateReporting   State = "reporting"
)

var allStates = []State{StateUninstalled, StateInstalled, StateRunning, StateRestarting, StateReporting}

// flags are the persisted lifecycle guards.
type flags struct {
    Installed   bool `json:"installed"`
    Started     bool `json:"started"`
    RestEnabled bool `json:"restEnabled"`
}

func (f flags) state() State {
    switch {
    case f.Started:
        return StateRunning
    case f.Installed:
        return StateInstalled
    default:
        return StateUninstalled
    }
}

// Persisted record keys.
const (
    keyFlags      = "flags"
    keyWatched    = "watched"
    keyMembership = "membership"
)

// Watched value names.
const (
    watchBindAddress = "zookeeper.bind_address"
)

// Status is a JSON-serializable view of the controller suitable for the
// management API and tooling.
type Status struct {
    Node        string         `json:"node"`
    State       State          `json:"state"`
    Level       status.Level   `json:"level,omitempty"`
    Message     string         `json:"message,omitempty"`
    ServerID    int            `json:"serverId"`
    Peers       []string       `json:"peers"`
    Servers     map[string]int `json:"servers"`
    Version     uint64         `json:"version"`
    Size        int            `json:"size"`
    Tolerated   int            `json:"tolerated"`
    Grade       quorum.Grade   `json:"grade"`
    Advisory    string         `json:"advisory,omitempty"`
    Installed   bool           `json:"installed"`
    Started     bool           `json:"started"`
    RestEnabled bool           `json:"restEnabled"`
    UpdatedAt   time.Time      `json:"updatedAt"`
}

// ConnectionInfo is what a client of the ensemble needs to connect to this
// node.
type ConnectionInfo struct {
    Port     int    `json:"port"`
    RestPort int    `json:"restPort"`
    Host     string `json:"host,omitempty"`
}

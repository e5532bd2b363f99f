// Package status renders operator-facing status text and hands it to sinks.
package status

import "fmt"

// Level is the workload status level an operator sees next to the message.
type Level string

const (
    LevelMaintenance Level = "maintenance"
    LevelActive      Level = "active"
    LevelBlocked     Level = "blocked"
    LevelWaiting     Level = "waiting"
)

// Phase is the lifecycle step a message describes.
type Phase string

const (
    PhaseAwaitingResources Phase = "Waiting for Zookeeper resources"
    PhaseInstalling        Phase = "Installing Zookeeper"
    PhaseInstalled         Phase = "Zookeeper Installed"
    PhaseReady             Phase = "Ready"
    PhaseRestarting        Phase = "Server config changed: restarting Zookeeper"
    PhaseUpdatingRest      Phase = "Updating REST service"
)

// Render formats a status message. Ready with a positive node count carries
// the ensemble size and the quorum advisory, if any.
func Render(phase Phase, nodeCount int, advisory string) string {
    if phase != PhaseReady || nodeCount <= 0 {
        return string(phase)
    }
    if advisory == "" {
        return fmt.Sprintf("Ready (%d zk units)", nodeCount)
    }
    return fmt.Sprintf("Ready (%d zk units: %s)", nodeCount, advisory)
}

// Failure formats the message published when a lifecycle operation fails.
func Failure(op string, err error) string {
    return fmt.Sprintf("Zookeeper %s failed: %v", op, err)
}

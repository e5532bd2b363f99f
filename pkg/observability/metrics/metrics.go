package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    EnsembleSize = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "zk_ensemble",
        Name:      "members_total",
        Help:      "Current number of ensemble members, including this node",
    })

    MembershipVersion = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "zk_ensemble",
        Name:      "membership_version",
        Help:      "Version of the membership record; bumps once per applied add or remove",
    })

    QuorumHealthy = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "zk_ensemble",
        Name:      "quorum_healthy",
        Help:      "1 if the ensemble size is odd and at least 3, else 0",
    })

    ControllerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
        Namespace: "zk_ensemble",
        Subsystem: "controller",
        Name:      "state",
        Help:      "1 for the current controller state, 0 for the others",
    }, []string{"state"})

    EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "zk_ensemble",
        Subsystem: "controller",
        Name:      "events_total",
        Help:      "Total events handled by the controller",
    }, []string{"kind", "result"})

    Restarts = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "zk_ensemble",
        Subsystem: "controller",
        Name:      "restarts_total",
        Help:      "Total restarts triggered by rendered config changes",
    })

    BindAddressUpdates = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "zk_ensemble",
        Subsystem: "controller",
        Name:      "bind_address_updates_total",
        Help:      "Total bind address reconfigurations",
    })

    OperationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "zk_ensemble",
        Subsystem: "process",
        Name:      "failures_total",
        Help:      "Total failed process operations",
    }, []string{"op"})

    PeerEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "zk_ensemble",
        Subsystem: "peers",
        Name:      "events_total",
        Help:      "Peer events by kind and outcome (applied or duplicate)",
    }, []string{"kind", "outcome"})

    PeersPending = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "zk_ensemble",
        Subsystem: "peers",
        Name:      "pending",
        Help:      "Peer events delivered but not yet dismissed",
    })

    PeerCountDrift = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "zk_ensemble",
        Subsystem: "peers",
        Name:      "count_drift_total",
        Help:      "Times the process reported a peer count different from the membership record",
    })
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(EnsembleSize)
        prometheus.MustRegister(MembershipVersion)
        prometheus.MustRegister(QuorumHealthy)
        prometheus.MustRegister(ControllerState)
        prometheus.MustRegister(EventsTotal)
        prometheus.MustRegister(Restarts)
        prometheus.MustRegister(BindAddressUpdates)
        prometheus.MustRegister(OperationFailures)
        prometheus.MustRegister(PeerEvents)
        prometheus.MustRegister(PeersPending)
        prometheus.MustRegister(PeerCountDrift)
    })
}

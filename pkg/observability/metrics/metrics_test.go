package metrics

import (
    "testing"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/testutil"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
    require.NotPanics(t, Register)
    require.NotPanics(t, Register)

    mfs, err := prometheus.DefaultGatherer.Gather()
    require.NoError(t, err)
    names := map[string]bool{}
    for _, mf := range mfs { names[mf.GetName()] = true }
    assert.True(t, names["zk_ensemble_members_total"])
}

func TestCounters(t *testing.T) {
    Register()
    before := testutil.ToFloat64(Restarts)
    Restarts.Inc()
    assert.Equal(t, before+1, testutil.ToFloat64(Restarts))

    EventsTotal.WithLabelValues("config_changed", "ok").Inc()
    assert.GreaterOrEqual(t, testutil.ToFloat64(EventsTotal.WithLabelValues("config_changed", "ok")), 1.0)
}

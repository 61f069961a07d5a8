package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-dsa/interpreter"
	"github.com/frobware/go-dsa/metrics"
)

func TestFabric(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := metrics.New(reg)

	m.Registration(interpreter.EventPending)
	m.Registration(interpreter.EventPending)
	m.Registration(interpreter.EventActivated)
	m.TreeActivated(1, 20*time.Millisecond)
	m.TreeActivated(2, 5*time.Millisecond)
	m.TreeDeactivated(2)
	m.RolledBack(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues("activated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveTrees))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rollbacks.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deactivations.WithLabelValues("2")))

	n, err := testutil.GatherAndCount(reg, "dsa_activation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	problems, err := testutil.GatherAndLint(reg)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

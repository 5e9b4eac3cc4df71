package pipeline

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDuplicateRegistration(t *testing.T) {
	promReg := prometheus.NewRegistry()
	reg := newReusableRegistry(promReg)

	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test",
		Help: "test",
	})
	reg.MustRegister(c)
	c.Inc()
	c.Inc()
	require.Equal(t, 1, testutil.CollectAndCount(promReg))
	require.Equal(t, float64(2), testutil.ToFloat64(c))

	c = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test",
		Help: "test",
	})
	require.Panics(t, func() {
		promReg.MustRegister(c)
	})

	reg.MustRegister(c)
	c.Inc()
	mf, err := promReg.Gather()
	require.NoError(t, err)
	require.Len(t, mf, 1)
	require.Equal(t, float64(1), mf[0].Metric[0].Counter.GetValue())
}

func TestMetricsSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewMetrics(reg)
	first.mixedStarts.Inc()

	var second *Metrics
	require.NotPanics(t, func() {
		second = NewMetrics(reg)
	})
	second.mixedStarts.Inc()
	require.Equal(t, float64(1), testutil.ToFloat64(second.mixedStarts))

	n, err := testutil.GatherAndCount(reg, "frostpipe_mixed_starts_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Labelled vectors are replaced as well.
	second.sendFailures.WithLabelValues("fan_out").Inc()
	third := NewMetrics(reg)
	require.Equal(t, 0, testutil.CollectAndCount(third.sendFailures))
	third.sendFailures.WithLabelValues("fan_in").Inc()
	n, err = testutil.GatherAndCount(reg, "frostpipe_mixed_send_failures_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestReusableRegistryWrappers(t *testing.T) {
	promReg := prometheus.NewRegistry()
	newCounter := func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: "runs_total", Help: "runs"})
	}

	old := newCounter()
	old.Add(5)
	newReusableRegistry(promReg).MustRegister(old)

	// A fresh wrapper over the same registry still replaces the collector.
	replacement := newCounter()
	require.NotPanics(t, func() {
		newReusableRegistry(promReg).MustRegister(replacement)
	})
	replacement.Inc()
	require.Equal(t, float64(1), testutil.ToFloat64(replacement))
	mf, err := promReg.Gather()
	require.NoError(t, err)
	require.Len(t, mf, 1)
	require.Equal(t, float64(1), mf[0].Metric[0].Counter.GetValue())

	require.True(t, newReusableRegistry(promReg).Unregister(replacement))
	require.Equal(t, 0, testutil.CollectAndCount(promReg))
}

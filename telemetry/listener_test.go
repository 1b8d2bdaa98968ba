package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/carapace"
)

type session struct{}

func (s *session) Close() error { return nil }

type broken struct{}

func setup(t *testing.T) (*sdkmetric.ManualReader, *carapace.Provider) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = meterProvider.Shutdown(context.Background()) })

	listener, err := NewListener(meterProvider.Meter("carapace-test"))
	require.NoError(t, err)

	services := carapace.NewServiceCollection()
	carapace.AddScoped[*session](services, func() *session { return &session{} })
	carapace.AddTransient[*broken](services, func() (*broken, error) { return nil, errors.New("boom") })

	p, err := services.Build(carapace.WithListener(listener))
	require.NoError(t, err)

	return reader, p
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

func sum(t *testing.T, m metricdata.Metrics, match func(attribute.Set) bool) int64 {
	t.Helper()

	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range data.DataPoints {
		if match == nil || match(dp.Attributes) {
			total += dp.Value
		}
	}

	return total
}

func withOutcome(outcome string) func(attribute.Set) bool {
	return func(set attribute.Set) bool {
		v, ok := set.Value("outcome")
		return ok && v.AsString() == outcome
	}
}

func TestListener_RecordsProviderActivity(t *testing.T) {
	reader, p := setup(t)

	scope, err := p.CreateScope()
	require.NoError(t, err)

	_, err = carapace.Resolve[*session](scope)
	require.NoError(t, err)
	_, err = carapace.Resolve[*session](scope)
	require.NoError(t, err)
	_, err = carapace.Resolve[*broken](scope)
	require.Error(t, err)

	require.NoError(t, scope.Dispose())

	metrics := collect(t, reader)

	assert.Equal(t, int64(2), sum(t, metrics[MetricCallSitesBuilt], nil))
	assert.Equal(t, int64(2), sum(t, metrics[MetricServicesResolved], withOutcome("ok")))
	assert.Equal(t, int64(1), sum(t, metrics[MetricServicesResolved], withOutcome("error")))
	assert.Equal(t, int64(1), sum(t, metrics[MetricScopesCreated], nil))
	assert.Equal(t, int64(1), sum(t, metrics[MetricScopesDisposed], nil))

	hist, ok := metrics[MetricScopeDisposables].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.Equal(t, int64(1), hist.DataPoints[0].Sum)
}

func TestListener_CallSiteAttributes(t *testing.T) {
	reader, p := setup(t)

	scope, err := p.CreateScope()
	require.NoError(t, err)
	_, err = carapace.Resolve[*session](scope)
	require.NoError(t, err)

	metrics := collect(t, reader)

	scoped := sum(t, metrics[MetricCallSitesBuilt], func(set attribute.Set) bool {
		kind, _ := set.Value("kind")
		cache, _ := set.Value("cache")
		return kind.AsString() == "Constructor" && cache.AsString() == "Scope"
	})
	assert.Equal(t, int64(1), scoped)
}

func TestListener_RootDisposal(t *testing.T) {
	reader, p := setup(t)

	_, err := p.CreateScope()
	require.NoError(t, err)
	require.NoError(t, p.Dispose())

	metrics := collect(t, reader)

	root := sum(t, metrics[MetricScopesDisposed], func(set attribute.Set) bool {
		v, _ := set.Value("root")
		return v.AsBool()
	})
	assert.Equal(t, int64(1), root)
	assert.Equal(t, int64(2), sum(t, metrics[MetricScopesDisposed], nil))
}

package stores

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/alexjbarnes/idsrv-docstore/internal/docdb"
	"github.com/alexjbarnes/idsrv-docstore/internal/holder"
	"github.com/alexjbarnes/idsrv-docstore/internal/metrics"
)

func boltOptions(t *testing.T, database string) holder.StoreOptions {
	t.Helper()
	dir := t.TempDir()
	opts := holder.DefaultStoreOptions()
	opts.ConfigureDocumentStore = func(o *docdb.Options) {
		o.URLs = []string{"bolt://" + dir}
		o.Database = database
	}
	return opts
}

func testConfiguration(t *testing.T) *holder.Configuration {
	t.Helper()
	h, err := holder.NewConfiguration(context.Background(), boltOptions(t, "config"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func testOperational(t *testing.T) *holder.Operational {
	t.Helper()
	h, err := holder.NewOperational(context.Background(), boltOptions(t, "ops"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

type sessionSource interface {
	OpenSession() *docdb.Session
	DocumentStore() *docdb.DocumentStore
}

// seed writes docs in one session and waits until every index has seen
// them.
func seed(t *testing.T, h sessionSource, docs ...docdb.Document) {
	t.Helper()
	ctx := context.Background()

	sess := h.OpenSession()
	defer sess.Close()

	for _, d := range docs {
		require.NoError(t, sess.Store(ctx, d))
	}
	require.NoError(t, sess.SaveChanges(ctx))
	require.NoError(t, h.DocumentStore().WaitForIndexing(ctx, 5*time.Second))
}

func testMetrics() (*metrics.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.New(reg), reg
}

// counterValue returns the value of the counter name with exactly labels,
// or 0 when it was never incremented.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}

	metric:
		for _, m := range mf.GetMetric() {
			if len(m.GetLabel()) != len(labels) {
				continue
			}
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}

	return 0
}

func holderConfiguration(t *testing.T, opts holder.StoreOptions) (*holder.Configuration, error) {
	t.Helper()
	h, err := holder.NewConfiguration(context.Background(), opts)
	if err == nil {
		t.Cleanup(func() { h.Close() })
	}
	return h, err
}

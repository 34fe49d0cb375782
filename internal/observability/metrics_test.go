package observability

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.IssueProcessed("changed")
	m.IssueProcessed("changed")
	m.IssueProcessed("failed")
	m.FetchRetried()
	m.CacheUpsert("unchanged")
	m.ObserveBatch(3 * time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.issuesProcessed.WithLabelValues("changed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.issuesProcessed.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheUpserts.WithLabelValues("unchanged")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IssueProcessed("changed")
		m.FetchRetried()
		m.CacheUpsert("changed")
		m.ObserveBatch(time.Second)
	})
}

func TestServe_ExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.IssueProcessed("skipped")

	srv, err := Serve(context.Background(), "127.0.0.1:0", m)
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `discotrack_issues_processed_total{outcome="skipped"} 1`)
}

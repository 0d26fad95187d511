package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TransferStarted()
	m.TransferStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.active))

	m.TransferFinished(StatusSucceeded, 1024, 2*time.Second)
	m.TransferFinished(StatusFailed, 512, time.Second)
	m.TransferSkipped()

	assert.Equal(t, 0.0, testutil.ToFloat64(m.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues(StatusSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues(StatusFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfersTotal.WithLabelValues(StatusSkipped)))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.bytesTotal), "only successful bytes are counted")

	count, err := testutil.GatherAndCount(reg, "datagov_transfer_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.TransferStarted()
	m.TransferFinished(StatusSucceeded, 1, time.Second)
	m.TransferSkipped()
}

func TestWriteFile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.TransferStarted()
	m.TransferFinished(StatusSucceeded, 10, time.Millisecond)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, WriteFile(reg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `datagov_transfers_total{status="succeeded"} 1`)
	assert.Contains(t, string(data), "datagov_transfer_bytes_total 10")
}

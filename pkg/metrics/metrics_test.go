package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordFile("stored", 10*time.Millisecond)
	m.RecordFile("stored", 20*time.Millisecond)
	m.RecordFile("parse_failed", time.Millisecond)
	m.RecordFolder("completed")
	m.SetUntranslated(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.filesTotal.WithLabelValues("stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.filesTotal.WithLabelValues("parse_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.foldersTotal.WithLabelValues("completed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.untranslated))
}

func TestIngestMetrics_InstancesAreIndependent(t *testing.T) {
	a := New()
	b := New()
	a.RecordFolder("failed")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.foldersTotal.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.foldersTotal.WithLabelValues("failed")))
}

func TestIngestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.RecordFile("skipped", 5*time.Millisecond)
	m.SetUntranslated(1)

	path := filepath.Join(t.TempDir(), "epd.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `epd_files_total{status="skipped"} 1`)
	assert.Contains(t, text, "epd_untranslated_terms 1")
	assert.Contains(t, text, "epd_file_duration_seconds_bucket")
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Duration(), time.Millisecond)
}

package operations

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// runMetrics is a per-run registry written out for node_exporter's textfile
// collector.
type runMetrics struct {
	registry *prometheus.Registry

	success   prometheus.Gauge
	timestamp prometheus.Gauge
	duration  prometheus.Gauge
	size      prometheus.Gauge
	retained  prometheus.Gauge
	pruned    prometheus.Gauge
}

func newRunMetrics(port int) *runMetrics {
	labels := prometheus.Labels{"port": strconv.Itoa(port)}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "rdb_backup",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &runMetrics{
		registry:  prometheus.NewRegistry(),
		success:   gauge("last_run_success", "1 if the last backup run succeeded, 0 otherwise."),
		timestamp: gauge("last_run_timestamp_seconds", "Unix time the last backup run finished."),
		duration:  gauge("duration_seconds", "Wall-clock duration of the last backup run."),
		size:      gauge("size_bytes", "Size of the backup file written by the last successful run."),
		retained:  gauge("retained_files", "Backups retained after pruning."),
		pruned:    gauge("pruned_files", "Backups deleted by the last run."),
	}
	m.registry.MustRegister(m.success, m.timestamp, m.duration, m.size, m.retained, m.pruned)
	return m
}

func (m *runMetrics) observe(res Result, err error) {
	m.timestamp.Set(float64(time.Now().Unix()))
	m.duration.Set(res.Duration.Seconds())
	m.pruned.Set(float64(len(res.Pruned)))
	if err != nil {
		m.success.Set(0)
		return
	}
	m.success.Set(1)
	m.size.Set(float64(res.Backup.Size))
	m.retained.Set(float64(res.Retained))
}

func (m *runMetrics) writeTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

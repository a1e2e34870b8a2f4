package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/erik-marten/VeriLog/internal/auditlog"
	"github.com/erik-marten/VeriLog/internal/storage/vlog"
	"github.com/erik-marten/VeriLog/internal/telemetry/logger"
)

// StatsSource is implemented by *auditlog.Logger.
type StatsSource interface {
	Stats() auditlog.Stats
	Dir() string
}

// WriterCollector reports audit writer statistics.
type WriterCollector struct {
	src StatsSource
	log logger.Logger

	written     *prometheus.Desc
	dropped     *prometheus.Desc
	rejected    *prometheus.Desc
	rotations   *prometheus.Desc
	faulted     *prometheus.Desc
	activeBytes *prometheus.Desc
	nextSeq     *prometheus.Desc
	queueLen    *prometheus.Desc
	queueCap    *prometheus.Desc
	dirBytes    *prometheus.Desc
	dirFiles    *prometheus.Desc
}

// NewWriterCollector creates a collector over src.
func NewWriterCollector(src StatsSource, log logger.Logger) *WriterCollector {
	if log == nil {
		log = logger.Default()
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "writer", name), help, nil, nil)
	}
	return &WriterCollector{
		src:         src,
		log:         log,
		written:     desc("entries_written_total", "Entries appended to the log"),
		dropped:     desc("events_dropped_total", "Events dropped by backpressure or after a fault"),
		rejected:    desc("events_rejected_total", "Events rejected for invalid fields"),
		rotations:   desc("rotations_total", "Size-triggered rotations of the active file"),
		faulted:     desc("faulted", "1 if the writer has faulted"),
		activeBytes: desc("active_file_bytes", "Size of the active file in bytes"),
		nextSeq:     desc("next_seq", "Sequence number the next entry will get"),
		queueLen:    desc("queue_length", "Events waiting in the queue"),
		queueCap:    desc("queue_capacity", "Queue capacity"),
		dirBytes:    desc("dir_bytes", "Total size of log files in the directory"),
		dirFiles:    desc("dir_files", "Number of log files in the directory"),
	}
}

// Describe implements prometheus.Collector.
func (c *WriterCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.written, c.dropped, c.rejected, c.rotations, c.faulted,
		c.activeBytes, c.nextSeq, c.queueLen, c.queueCap, c.dirBytes, c.dirFiles,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *WriterCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()

	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.written, s.Written)
	counter(c.dropped, s.Dropped)
	counter(c.rejected, s.Rejected)
	counter(c.rotations, s.Rotations)
	faulted := 0.0
	if s.Faulted {
		faulted = 1
	}
	gauge(c.faulted, faulted)
	gauge(c.activeBytes, float64(s.ActiveBytes))
	gauge(c.nextSeq, float64(s.NextSeq))
	gauge(c.queueLen, float64(s.QueueLen))
	gauge(c.queueCap, float64(s.QueueCap))

	dir := c.src.Dir()
	if size, err := vlog.TotalSize(dir); err == nil {
		gauge(c.dirBytes, float64(size))
	} else {
		c.log.Warn("metrics: dir size", "dir", dir, "error", err)
	}
	if n, err := vlog.FileCount(dir); err == nil {
		gauge(c.dirFiles, float64(n))
	}
}

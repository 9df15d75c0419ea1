package buffer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts buffer pool events
type Metrics struct {
	Hits       prometheus.Counter
	Misses     prometheus.Counter
	Evictions  prometheus.Counter
	WriteBacks prometheus.Counter
	Flushes    prometheus.Counter
	DiskReads  prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bufpool",
			Subsystem: "buffer",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		Hits:       counter("hits_total", "Fetches served from a resident frame."),
		Misses:     counter("misses_total", "Fetches that had to read the page from disk."),
		Evictions:  counter("evictions_total", "Frames reused for a different page."),
		WriteBacks: counter("write_backs_total", "Dirty victims written before eviction."),
		Flushes:    counter("flushes_total", "Explicit page flushes."),
		DiskReads:  counter("disk_reads_total", "Pages read from the disk manager."),
	}
}

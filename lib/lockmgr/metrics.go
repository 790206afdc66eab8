package lockmgr

import (
	"github.com/VictoriaMetrics/metrics"
)

// storageMetrics bundles all metrics exported by the memory storage
type storageMetrics struct {
	acquireGranted *metrics.Counter
	acquireBusy    *metrics.Counter
	released       *metrics.Counter
	expired        *metrics.Counter
	dumps          *metrics.Counter
	dumpErrors     *metrics.Counter
	maintenance    *metrics.Histogram
}

// newStorageMetrics registers the storage metrics in the given set.
// The gauges read the current state through the stats function when the set is scraped.
func newStorageMetrics(set *metrics.Set, stats func() Stats) *storageMetrics {
	set.NewGauge("livelock_locks", func() float64 {
		return float64(stats().LockCount)
	})
	set.NewGauge("livelock_clients", func() float64 {
		return float64(stats().ClientCount)
	})
	set.NewGauge("livelock_locks_pending_release", func() float64 {
		return float64(stats().PendingRelease)
	})

	return &storageMetrics{
		acquireGranted: set.NewCounter(`livelock_acquire_total{result="granted"}`),
		acquireBusy:    set.NewCounter(`livelock_acquire_total{result="busy"}`),
		released:       set.NewCounter("livelock_release_total"),
		expired:        set.NewCounter("livelock_expired_total"),
		dumps:          set.NewCounter("livelock_dumps_total"),
		dumpErrors:     set.NewCounter("livelock_dump_errors_total"),
		maintenance:    set.NewHistogram("livelock_maintenance_duration_seconds"),
	}
}

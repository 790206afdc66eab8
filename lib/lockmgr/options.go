package lockmgr

import (
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	DefaultDumpFile    = "livelock_memstor_dump.bin" // Relative to the working directory
	DefaultGracePeriod = 60 * time.Second            // Default timeout of ReleaseAll
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the memory lock storage during initialization
type Options struct {
	DumpFile    string           // Path of the dump file ("" = DefaultDumpFile)
	GracePeriod time.Duration    // Default timeout for ReleaseAll (0 = DefaultGracePeriod)
	Clock       func() time.Time // Source of the current time (nil = time.Now)
	Metrics     *metrics.Set     // Set the storage metrics are registered in (nil = private set)
}

// DefaultOptions returns the default storage options
func DefaultOptions() *Options {
	return &Options{
		DumpFile:    DefaultDumpFile,
		GracePeriod: DefaultGracePeriod,
		Clock:       time.Now,
	}
}

// withDefaults fills all unset fields with their default values
func (o *Options) withDefaults() *Options {
	opts := DefaultOptions()
	if o == nil {
		return opts
	}
	if o.DumpFile != "" {
		opts.DumpFile = o.DumpFile
	}
	if o.GracePeriod > 0 {
		opts.GracePeriod = o.GracePeriod
	}
	if o.Clock != nil {
		opts.Clock = o.Clock
	}
	opts.Metrics = o.Metrics
	return opts
}

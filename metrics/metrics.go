// Package metrics defines the recording contract for hop outcomes and
// confirmation latencies.
package metrics

import "time"

// Recorder counts hop lifecycle events (started, confirmed, failed, timed
// out) and observes how long each confirmation wait took. Labels carry the
// hop name and destination ledger.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

package gameinfo

import (
	"time"
)

// Metrics provides observability for cache operations.
//
// Implementations collect lookup, load and decode counters without being on
// the record lock's critical path. This is optional - a nil Metrics skips
// collection entirely.
//
// Example implementations:
//   - Prometheus metrics (pkg/metrics/prometheus)
//   - In-memory counters for testing
type Metrics interface {
	// ObserveLookup records a GetInfo call and whether it hit an existing
	// record.
	ObserveLookup(hit bool)

	// ObserveEscalation records a record discarded and recreated because a
	// caller upgraded from icon-only to background art.
	ObserveEscalation()

	// ObserveLoad records one loader task run: the record kind, an outcome
	// of "ok" or "aborted", and the task duration.
	ObserveLoad(kind Kind, outcome string, duration time.Duration)

	// ObserveDecode records one foreground decode attempt for a slot, with
	// outcome "ok" or "failed".
	ObserveDecode(slot SlotID, outcome string, duration time.Duration)

	// ObserveStaleWrite records a loader write skipped because its record
	// was superseded.
	ObserveStaleWrite()

	// RecordCount records the current number of live records.
	RecordCount(count int)
}

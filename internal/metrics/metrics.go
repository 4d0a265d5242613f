// Package metrics defines the write-only metrics sink contract (spec §6)
// and two implementations: a no-op default and a Prometheus-backed one.
package metrics

import "time"

// Sink receives counters and durations from a running pipeline. It is
// write-only from the core's perspective and may be a no-op; nothing in
// internal/pipeline or internal/restore ever reads a value back out.
type Sink interface {
	ChunksIn(n uint64)
	ChunksOut(n uint64)
	BytesIn(n uint64)
	BytesOut(n uint64)
	Errors(n uint64)
	ChunkDuration(d time.Duration)
	StageDuration(kind, algorithm string, d time.Duration)
}

// Noop discards every observation. It is the default Sink when a caller
// does not supply one, matching spec §6 ("the sink may be a no-op").
type Noop struct{}

func (Noop) ChunksIn(uint64)                             {}
func (Noop) ChunksOut(uint64)                            {}
func (Noop) BytesIn(uint64)                              {}
func (Noop) BytesOut(uint64)                             {}
func (Noop) Errors(uint64)                                {}
func (Noop) ChunkDuration(time.Duration)                 {}
func (Noop) StageDuration(string, string, time.Duration) {}

// OrNoop returns s if non-nil, else Noop{}.
func OrNoop(s Sink) Sink {
	if s == nil {
		return Noop{}
	}
	return s
}

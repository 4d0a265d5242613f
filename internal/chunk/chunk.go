// Package chunk defines the unit of work moved through the pipeline's
// channels: a fixed-size (except the last) slice of the stream, and the
// transformed chunk produced by the stage sequencer.
package chunk

// Chunk is produced and uniquely owned by the reader, then transferred by
// move through the raw channel to a worker. Sequence numbers are dense
// and start at 0; exactly one chunk has Final=true, and it carries the
// highest sequence number in the stream.
type Chunk struct {
	Seq   uint64
	Data  []byte
	Final bool
}

// Len returns the payload length, for memory-admission bookkeeping.
func (c Chunk) Len() int { return len(c.Data) }

// Processed is the transformed counterpart of a Chunk: same sequence
// number, the stage chain's output bytes, and an optional per-chunk
// content hash left by a per-chunk hashing stage in the chain.
type Processed struct {
	Seq         uint64
	Data        []byte
	Final       bool
	ContentHash []byte // nil unless a per-chunk hashing stage ran
	OrigLen     int    // source Chunk's payload length, for memory-admission release
	Err         error
}

package table

import "github.com/GriffinCanCode/apm-collector/internal/shared/id"

// GlobalTrace links a segment to the distributed trace it belongs to.
// Entries are written once.
type GlobalTrace struct {
	SegmentID     string                `json:"segment_id"`
	GlobalTraceID id.DistributedTraceID `json:"global_trace_id"`
	TimeBucket    int64                 `json:"time_bucket"`
}

// Key is segmentId_globalTraceId.
func (g *GlobalTrace) Key() string {
	return g.SegmentID + "_" + g.GlobalTraceID.Encode()
}

// Merge keeps the first record seen.
func (g *GlobalTrace) Merge(*GlobalTrace) *GlobalTrace {
	return g
}

// Segment stores the raw trace segment reported by an agent. Entries are
// written once.
type Segment struct {
	SegmentID  string `json:"segment_id"`
	TimeBucket int64  `json:"time_bucket"`
	DataBinary []byte `json:"data_binary"`
}

// Key is the segment id.
func (s *Segment) Key() string {
	return s.SegmentID
}

// Merge keeps the first record seen.
func (s *Segment) Merge(*Segment) *Segment {
	return s
}

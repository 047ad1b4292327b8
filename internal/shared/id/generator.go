package id

import (
	"sync"
	"time"
)

// seqPerMilli is the number of sequence values available per millisecond.
const seqPerMilli = 10000

// Generator creates new trace ids of the form
// (instanceID, shard, timestampMillis*10000 + seq).
type Generator struct {
	instanceID int64
	shard      int64
	now        func() time.Time

	mu       sync.Mutex
	lastTime int64
	seq      int64
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// SetDefault installs the process generator. Only the first call has effect.
func SetDefault(instanceID, shard int64) *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator(instanceID, shard)
	})
	return defaultGenerator
}

// Default returns the process generator, creating one with instance 0 when
// SetDefault was never called.
func Default() *Generator {
	return SetDefault(0, 0)
}

// NewGenerator creates a generator for one collector or agent instance.
func NewGenerator(instanceID, shard int64) *Generator {
	return &Generator{
		instanceID: instanceID,
		shard:      shard,
		now:        time.Now,
	}
}

// NewGeneratorWithClock creates a generator with a custom clock.
// Useful for testing clock regression.
func NewGeneratorWithClock(instanceID, shard int64, now func() time.Time) *Generator {
	g := NewGenerator(instanceID, shard)
	g.now = now
	return g
}

// Generate creates a new ID. IDs from one generator are strictly increasing in
// their third part, even when the wall clock moves backwards.
func (g *Generator) Generate() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().UnixMilli()
	if ts > g.lastTime {
		g.lastTime = ts
		g.seq = 0
	} else {
		g.seq++
		if g.seq == seqPerMilli {
			// borrow the next millisecond rather than wrap
			g.lastTime++
			g.seq = 0
		}
	}

	return NewID(g.instanceID, g.shard, g.lastTime*seqPerMilli+g.seq)
}

// NewTraceID starts a new call chain.
func (g *Generator) NewTraceID() DistributedTraceID {
	return NewDistributedTraceID(g.Generate())
}

// NewTraceID starts a new call chain using the default generator.
func NewTraceID() DistributedTraceID {
	return Default().NewTraceID()
}

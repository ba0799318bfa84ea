package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Reader is the read side of a Collector, used by presenters.
type Reader interface {
	Snapshot() Snapshot
	RollingSpeed(seconds int) float64
	SparklineData(n int) []float64
	ETA() time.Duration
}

// ReadTicker is a Reader that can also advance the throughput ring.
type ReadTicker interface {
	Reader
	Tick()
}

// Collector tracks backup statistics using lock-free atomic counters. The
// engine writes; presenters read.
type Collector struct {
	blocksRead    atomic.Int64
	bytesRead     atomic.Int64
	blocksChanged atomic.Int64
	blocksFailed  atomic.Int64
	bytesWritten  atomic.Int64
	blocksTotal   atomic.Int64
	bytesTotal    atomic.Int64
	startTime     time.Time

	// Ring buffer of read throughput, advanced only by Tick.
	mu         sync.Mutex
	throughput [ringSize]int64
	ringIdx    int
	ringCount  int
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records the device geometry (called once after the device is opened).
func (c *Collector) SetTotals(blocks, bytes int64) {
	c.blocksTotal.Store(blocks)
	c.bytesTotal.Store(bytes)
}

func (c *Collector) AddBlocksRead(n int64)    { c.blocksRead.Add(n) }
func (c *Collector) AddBytesRead(n int64)     { c.bytesRead.Add(n) }
func (c *Collector) AddBlocksChanged(n int64) { c.blocksChanged.Add(n) }
func (c *Collector) AddBlocksFailed(n int64)  { c.blocksFailed.Add(n) }
func (c *Collector) AddBytesWritten(n int64)  { c.bytesWritten.Add(n) }

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	BlocksRead    int64
	BytesRead     int64
	BlocksChanged int64
	BlocksFailed  int64
	BytesWritten  int64
	BlocksTotal   int64
	BytesTotal    int64
	Elapsed       time.Duration
}

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		BlocksRead:    c.blocksRead.Load(),
		BytesRead:     c.bytesRead.Load(),
		BlocksChanged: c.blocksChanged.Load(),
		BlocksFailed:  c.blocksFailed.Load(),
		BytesWritten:  c.bytesWritten.Load(),
		BlocksTotal:   c.blocksTotal.Load(),
		BytesTotal:    c.bytesTotal.Load(),
		Elapsed:       c.Elapsed(),
	}
}

// Tick snapshots the bytes-read delta into the ring buffer. Called 1/sec by
// the presenter.
func (c *Collector) Tick() {
	current := c.bytesRead.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// SparklineData returns the last n throughput samples, oldest first.
func (c *Collector) SparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(n, c.ringCount)
	out := make([]float64, count)
	for i := range count {
		idx := (c.ringIdx - count + i + ringSize) % ringSize
		out[i] = float64(c.throughput[idx])
	}
	return out
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesRead.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"blocks=%d/%d changed=%d failed=%d read=%d written=%d",
		s.BlocksRead, s.BlocksTotal, s.BlocksChanged, s.BlocksFailed,
		s.BytesRead, s.BytesWritten,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

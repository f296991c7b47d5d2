package stats

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// OperationType defines the type of operation being tracked
type OperationType string

// Codec operation types
const (
	OpCompressBlock    OperationType = "compress_block"
	OpDecompressBlock  OperationType = "decompress_block"
	OpCompressStream   OperationType = "compress_stream"
	OpDecompressStream OperationType = "decompress_stream"
	OpVerify           OperationType = "verify"
)

// AtomicCollector provides statistics collection with minimal contention, using
// atomic counters and taking locks only to create map entries.
type AtomicCollector struct {
	counts   map[OperationType]*atomic.Uint64
	countsMu sync.RWMutex

	lastOpTime   map[OperationType]time.Time
	lastOpTimeMu sync.RWMutex

	rawBytes    atomic.Uint64
	packedBytes atomic.Uint64

	sortPaths   map[string]*atomic.Uint64
	sortPathsMu sync.RWMutex

	blockCRCFailures  atomic.Uint64
	streamCRCFailures atomic.Uint64

	errors   map[string]*atomic.Uint64
	errorsMu sync.RWMutex

	latencies   map[OperationType]*LatencyTracker
	latenciesMu sync.RWMutex
}

// LatencyTracker maintains running statistics about operation latencies
type LatencyTracker struct {
	count atomic.Uint64
	sum   atomic.Uint64 // nanoseconds
	max   atomic.Uint64
	min   atomic.Uint64 // zero until the first sample
}

// NewAtomicCollector creates a new atomic statistics collector
func NewAtomicCollector() *AtomicCollector {
	return &AtomicCollector{
		counts:     make(map[OperationType]*atomic.Uint64),
		lastOpTime: make(map[OperationType]time.Time),
		sortPaths:  make(map[string]*atomic.Uint64),
		errors:     make(map[string]*atomic.Uint64),
		latencies:  make(map[OperationType]*LatencyTracker),
	}
}

// TrackOperation increments the counter for the specified operation type
func (c *AtomicCollector) TrackOperation(op OperationType) {
	getOrCreate(&c.countsMu, c.counts, op).Add(1)

	c.lastOpTimeMu.Lock()
	c.lastOpTime[op] = time.Now()
	c.lastOpTimeMu.Unlock()
}

// TrackOperationWithLatency tracks an operation and its latency
func (c *AtomicCollector) TrackOperationWithLatency(op OperationType, latencyNs uint64) {
	c.TrackOperation(op)

	tracker := c.getOrCreateLatencyTracker(op)
	tracker.count.Add(1)
	tracker.sum.Add(latencyNs)

	for {
		current := tracker.max.Load()
		if latencyNs <= current || tracker.max.CompareAndSwap(current, latencyNs) {
			break
		}
	}

	for {
		current := tracker.min.Load()
		if current != 0 && latencyNs >= current {
			break
		}
		if tracker.min.CompareAndSwap(current, latencyNs) {
			break
		}
	}
}

// TrackError increments the counter for the specified error type
func (c *AtomicCollector) TrackError(errorType string) {
	getOrCreate(&c.errorsMu, c.errors, errorType).Add(1)
}

// TrackBytes adds raw and packed byte counts
func (c *AtomicCollector) TrackBytes(raw, packed uint64) {
	c.rawBytes.Add(raw)
	c.packedBytes.Add(packed)
}

// TrackSortPath counts a block sorted by the named path
func (c *AtomicCollector) TrackSortPath(path string) {
	getOrCreate(&c.sortPathsMu, c.sortPaths, path).Add(1)
}

// TrackChecksumFailure counts a block or stream CRC mismatch
func (c *AtomicCollector) TrackChecksumFailure(stream bool) {
	if stream {
		c.streamCRCFailures.Add(1)
	} else {
		c.blockCRCFailures.Add(1)
	}
}

// Ratio returns packed bytes per raw byte, or zero before any data was tracked.
func (c *AtomicCollector) Ratio() float64 {
	raw := c.rawBytes.Load()
	if raw == 0 {
		return 0
	}
	return float64(c.packedBytes.Load()) / float64(raw)
}

// Count returns the number of times op was tracked.
func (c *AtomicCollector) Count(op OperationType) uint64 {
	c.countsMu.RLock()
	defer c.countsMu.RUnlock()
	if counter, ok := c.counts[op]; ok {
		return counter.Load()
	}
	return 0
}

// GetStats returns all statistics as a map
func (c *AtomicCollector) GetStats() map[string]interface{} {
	stats := make(map[string]interface{})

	c.countsMu.RLock()
	for op, counter := range c.counts {
		stats[string(op)+"_ops"] = counter.Load()
	}
	c.countsMu.RUnlock()

	c.lastOpTimeMu.RLock()
	for op, timestamp := range c.lastOpTime {
		stats["last_"+string(op)+"_time"] = timestamp.UnixNano()
	}
	c.lastOpTimeMu.RUnlock()

	stats["raw_bytes"] = c.rawBytes.Load()
	stats["packed_bytes"] = c.packedBytes.Load()
	stats["ratio"] = c.Ratio()
	stats["block_crc_failures"] = c.blockCRCFailures.Load()
	stats["stream_crc_failures"] = c.streamCRCFailures.Load()

	c.sortPathsMu.RLock()
	for path, counter := range c.sortPaths {
		stats["sort_"+path] = counter.Load()
	}
	c.sortPathsMu.RUnlock()

	c.errorsMu.RLock()
	errorStats := make(map[string]uint64)
	for errType, counter := range c.errors {
		errorStats[errType] = counter.Load()
	}
	c.errorsMu.RUnlock()
	stats["errors"] = errorStats

	c.latenciesMu.RLock()
	for op, tracker := range c.latencies {
		count := tracker.count.Load()
		if count == 0 {
			continue
		}
		stats[string(op)+"_latency"] = map[string]interface{}{
			"count":  count,
			"avg_ns": tracker.sum.Load() / count,
			"min_ns": tracker.min.Load(),
			"max_ns": tracker.max.Load(),
		}
	}
	c.latenciesMu.RUnlock()

	return stats
}

// GetStatsFiltered returns statistics filtered by prefix
func (c *AtomicCollector) GetStatsFiltered(prefix string) map[string]interface{} {
	filtered := make(map[string]interface{})
	for key, value := range c.GetStats() {
		if strings.HasPrefix(key, prefix) {
			filtered[key] = value
		}
	}
	return filtered
}

// getOrCreate returns the counter for key, creating it under the write lock.
func getOrCreate[K comparable](mu *sync.RWMutex, m map[K]*atomic.Uint64, key K) *atomic.Uint64 {
	mu.RLock()
	counter, exists := m[key]
	mu.RUnlock()
	if exists {
		return counter
	}

	mu.Lock()
	defer mu.Unlock()
	if counter, exists = m[key]; !exists {
		counter = &atomic.Uint64{}
		m[key] = counter
	}
	return counter
}

func (c *AtomicCollector) getOrCreateLatencyTracker(op OperationType) *LatencyTracker {
	c.latenciesMu.RLock()
	tracker, exists := c.latencies[op]
	c.latenciesMu.RUnlock()
	if exists {
		return tracker
	}

	c.latenciesMu.Lock()
	defer c.latenciesMu.Unlock()
	if tracker, exists = c.latencies[op]; !exists {
		tracker = &LatencyTracker{}
		c.latencies[op] = tracker
	}
	return tracker
}

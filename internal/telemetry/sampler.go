package telemetry

type sampler struct {
	memory   Memory
	disk     Disk
	producer Producer
	pressure Pressure
}

func newSampler(m Memory, d Disk, p Producer, pw Pressure) sampler {
	return sampler{memory: m, disk: d, producer: p, pressure: pw}
}

// snapshot holds cumulative counters (monotonic).
type snapshot struct {
	memHits         uint64
	memMisses       uint64
	memEvicted      uint64
	memFlushes      uint64
	memFlushedItems uint64

	pressureScans uint64
	pressureHits  uint64

	diskHits         uint64
	diskMisses       uint64
	diskWrites       uint64
	diskEvictedItems uint64
	diskEvictedBytes uint64
	diskIOErrors     uint64

	produced         uint64
	produceFailed    uint64
	produceShared    uint64
	produceAbandoned uint64
}

func (s sampler) snapshot() snapshot {
	var out snapshot

	hits, misses, evicted, flushes, flushedItems := s.memory.Metrics()
	out.memHits = uint64(max(hits, 0))
	out.memMisses = uint64(max(misses, 0))
	out.memEvicted = uint64(max(evicted, 0))
	out.memFlushes = uint64(max(flushes, 0))
	out.memFlushedItems = uint64(max(flushedItems, 0))

	if s.pressure != nil {
		scans, pHits := s.pressure.Metrics()
		out.pressureScans = uint64(max(scans, 0))
		out.pressureHits = uint64(max(pHits, 0))
	}

	if s.disk != nil {
		dHits, dMisses, writes, items, bytes, ioErrs := s.disk.Metrics()
		out.diskHits = uint64(max(dHits, 0))
		out.diskMisses = uint64(max(dMisses, 0))
		out.diskWrites = uint64(max(writes, 0))
		out.diskEvictedItems = uint64(max(items, 0))
		out.diskEvictedBytes = uint64(max(bytes, 0))
		out.diskIOErrors = uint64(max(ioErrs, 0))
	}

	produced, failed, shared, abandoned, _ := s.producer.Metrics()
	out.produced = uint64(max(produced, 0))
	out.produceFailed = uint64(max(failed, 0))
	out.produceShared = uint64(max(shared, 0))
	out.produceAbandoned = uint64(max(abandoned, 0))

	return out
}

func (s sampler) inFlight() int64 {
	_, _, _, _, n := s.producer.Metrics()
	return n
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	return snapshot{
		memHits:         delta(prev.memHits, cur.memHits),
		memMisses:       delta(prev.memMisses, cur.memMisses),
		memEvicted:      delta(prev.memEvicted, cur.memEvicted),
		memFlushes:      delta(prev.memFlushes, cur.memFlushes),
		memFlushedItems: delta(prev.memFlushedItems, cur.memFlushedItems),

		pressureScans: delta(prev.pressureScans, cur.pressureScans),
		pressureHits:  delta(prev.pressureHits, cur.pressureHits),

		diskHits:         delta(prev.diskHits, cur.diskHits),
		diskMisses:       delta(prev.diskMisses, cur.diskMisses),
		diskWrites:       delta(prev.diskWrites, cur.diskWrites),
		diskEvictedItems: delta(prev.diskEvictedItems, cur.diskEvictedItems),
		diskEvictedBytes: delta(prev.diskEvictedBytes, cur.diskEvictedBytes),
		diskIOErrors:     delta(prev.diskIOErrors, cur.diskIOErrors),

		produced:         delta(prev.produced, cur.produced),
		produceFailed:    delta(prev.produceFailed, cur.produceFailed),
		produceShared:    delta(prev.produceShared, cur.produceShared),
		produceAbandoned: delta(prev.produceAbandoned, cur.produceAbandoned),
	}
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}

package imgcache

import "github.com/Borislavv/go-ash-imgcache/internal/format"

type Stats struct {
	Memory   MemoryStats
	Disk     DiskStats
	Producer ProducerStats
	Formats  []FormatStats
}

type MemoryStats struct {
	Entries      int64
	Bytes        int64
	Hits         int64
	Misses       int64
	Evicted      int64
	Flushes      int64
	FlushedItems int64
}

type DiskStats struct {
	Enabled      bool
	Hits         int64
	Misses       int64
	Writes       int64
	EvictedItems int64
	EvictedBytes int64
	IOErrors     int64
}

type ProducerStats struct {
	Produced  int64
	Failed    int64
	Shared    int64
	Abandoned int64
	InFlight  int64
}

type FormatStats struct {
	Name         string
	DiskEntries  int
	DiskSize     uint64
	DiskCapacity uint64
}

// Stats returns a point-in-time view of the counters. Fields of different tiers are not read atomically together.
func (c *Cache) Stats() Stats {
	var s Stats

	s.Memory.Entries, s.Memory.Bytes = c.memory.Len(), c.memory.Mem()
	s.Memory.Hits, s.Memory.Misses, s.Memory.Evicted, s.Memory.Flushes, s.Memory.FlushedItems = c.memory.Metrics()

	if c.disk != nil {
		s.Disk.Enabled = true
		s.Disk.Hits, s.Disk.Misses, s.Disk.Writes, s.Disk.EvictedItems, s.Disk.EvictedBytes, s.Disk.IOErrors = c.disk.Metrics()
	}

	s.Producer.Produced, s.Producer.Failed, s.Producer.Shared, s.Producer.Abandoned, s.Producer.InFlight = c.producer.Metrics()

	c.formats.Walk(func(rec *format.Record) bool {
		fs := FormatStats{Name: rec.Name, DiskSize: rec.DiskSize(), DiskCapacity: rec.DiskCapacity}
		if c.disk != nil {
			fs.DiskEntries = c.disk.Len(rec.Name)
		}
		s.Formats = append(s.Formats, fs)
		return true
	})
	return s
}

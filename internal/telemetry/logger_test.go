package telemetry

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/Borislavv/go-ash-imgcache/internal/format"
	"github.com/Borislavv/go-ash-imgcache/model"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeMemory struct{ hits int64 }

func (m *fakeMemory) Metrics() (int64, int64, int64, int64, int64) { return m.hits, 0, 0, 0, 0 }
func (m *fakeMemory) Len() int64                                   { return 3 }
func (m *fakeMemory) Mem() int64                                   { return 2048 }

type fakeProducer struct{}

func (fakeProducer) Metrics() (int64, int64, int64, int64, int64) { return 5, 1, 2, 0, 0 }

type fakeDisk struct{}

func (fakeDisk) Metrics() (int64, int64, int64, int64, int64, int64) { return 1, 2, 3, 4, 4096, 0 }

// TestDelta_ResetCounters treats a counter reset as a fresh delta.
func TestDelta_ResetCounters(t *testing.T) {
	require.Equal(t, uint64(5), delta(10, 15))
	require.Equal(t, uint64(3), delta(10, 3))

	d := deltaSnapshot(snapshot{memHits: 4, diskWrites: 1}, snapshot{memHits: 10, diskWrites: 1})
	require.Equal(t, uint64(6), d.memHits)
	require.Zero(t, d.diskWrites)
}

// TestLogs_WritesPerTierLines emits memory, disk, format and producer lines each interval.
func TestLogs_WritesPerTierLines(t *testing.T) {
	out := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(out, nil))

	registry := format.NewRegistry()
	_, err := registry.Register(model.Format{Name: "thumb", Width: 1, Height: 1, DiskCapacity: 1 << 20})
	require.NoError(t, err)

	cfg := &config.Cache{Name: "avatars", Telemetry: &config.TelemetryCfg{Interval: 10 * time.Millisecond}}
	logs := New(t.Context(), cfg, logger, registry, &fakeMemory{hits: 1}, fakeDisk{}, fakeProducer{}, nil)
	defer logs.Close()

	require.Equal(t, 10*time.Millisecond, logs.Interval())
	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "msg=memory_tier") &&
			strings.Contains(s, "msg=disk_tier") &&
			strings.Contains(s, "msg=disk_format") &&
			strings.Contains(s, "msg=producer")
	}, time.Second, 5*time.Millisecond)
	require.Contains(t, out.String(), "cache=avatars")
	require.Contains(t, out.String(), "capacity=\"1.0 MiB\"")
}

// TestLogs_Disabled never logs without telemetry config.
func TestLogs_Disabled(t *testing.T) {
	out := &syncBuffer{}
	logs := New(t.Context(), &config.Cache{}, slog.New(slog.NewTextHandler(out, nil)), format.NewRegistry(), &fakeMemory{}, nil, fakeProducer{}, nil)
	defer logs.Close()

	require.Zero(t, logs.Interval())
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, out.String())
}

// Package observability aggregates server telemetry: relay throughput,
// room occupancy and process health, exposed as a single snapshot for
// logging and the debug endpoint.
package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats is the latest aggregated view of the server.
type MonitoringStats struct {
	RelayNetSpeed    float64 `json:"relay_net_speed"` // MB/s pushed through the relay
	MessagesStored   uint64  `json:"messages_stored"`
	MessagesDropped  uint64  `json:"messages_dropped"`
	TokensIssued     uint64  `json:"tokens_issued"`
	ActiveRooms      int     `json:"active_rooms"`
	ActiveConns      int     `json:"active_conns"`
	AllocMemMb       uint64  `json:"alloc_mem_mb"`
	NumGC            uint32  `json:"num_gc"`
	ProcessCPU       float64 `json:"process_cpu"`
	ProcessRSSBytes  uint64  `json:"process_rss_bytes"`
	ProcessPidStatus string  `json:"process_pid_status"`
}

// MonitoringManager collects counters from the hot paths. Counters are
// atomic so handlers never contend on the snapshot lock.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats

	RelayBytes      uint64
	MessagesStored  uint64
	MessagesDropped uint64
	TokensIssued    uint64
	LastCheck       time.Time
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, LastCheck: time.Now()}
}

func (mm *MonitoringManager) IncrRelayBytes(n uint64) {
	atomic.AddUint64(&mm.RelayBytes, n)
}

func (mm *MonitoringManager) IncrMessagesStored() {
	atomic.AddUint64(&mm.MessagesStored, 1)
}

func (mm *MonitoringManager) IncrMessagesDropped() {
	atomic.AddUint64(&mm.MessagesDropped, 1)
}

func (mm *MonitoringManager) IncrTokensIssued() {
	atomic.AddUint64(&mm.TokensIssued, 1)
}

// UpdateOccupancy records the current room and connection counts.
func (mm *MonitoringManager) UpdateOccupancy(rooms, conns int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.latestStats.ActiveRooms = rooms
	mm.latestStats.ActiveConns = conns
}

// UpdateProcess records self stats collected by the heartbeat worker.
func (mm *MonitoringManager) UpdateProcess(rss uint64, cpu float64, status string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.latestStats.ProcessRSSBytes = rss
	mm.latestStats.ProcessCPU = cpu
	mm.latestStats.ProcessPidStatus = status
}

// Listen recomputes the snapshot once per second until the context ends.
func (mm *MonitoringManager) Listen(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mm.log.Info("Monitoring manager stopped")
			return
		case <-ticker.C:
			mm.updateStats()
		}
	}
}

func (mm *MonitoringManager) updateStats() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	duration := now.Sub(mm.LastCheck).Seconds()
	if duration > 0 {
		relayed := atomic.SwapUint64(&mm.RelayBytes, 0)
		mm.latestStats.RelayNetSpeed = (float64(relayed) / 1024 / 1024) / duration
	}
	mm.LastCheck = now

	mm.latestStats.MessagesStored = atomic.LoadUint64(&mm.MessagesStored)
	mm.latestStats.MessagesDropped = atomic.LoadUint64(&mm.MessagesDropped)
	mm.latestStats.TokensIssued = atomic.LoadUint64(&mm.TokensIssued)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}

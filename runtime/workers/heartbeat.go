package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"github.com/mikemainguy/video-conferencing-app/observability"
)

const heartbeatInterval = 5 * time.Second

// OccupancySource reports how many rooms and connections are live.
type OccupancySource interface {
	Occupancy() (rooms, conns int)
}

// HeartbeatWorker samples the server's own process stats (CPU, RSS, OS
// status) and room occupancy on a fixed interval and folds them into the
// monitoring snapshot.
type HeartbeatWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	occupancy  OccupancySource
}

func NewHeartbeatWorker(
	log *slog.Logger,
	monitoring *observability.MonitoringManager,
	occupancy OccupancySource,
) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitoring: monitoring, occupancy: occupancy}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker")
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.monitoring.UpdateProcess(rss, cpu, status)

			rooms, conns := w.occupancy.Occupancy()
			w.monitoring.UpdateOccupancy(rooms, conns)

			w.log.Debug("Heartbeat",
				"cpu_percent", cpu,
				"rss_bytes", rss,
				"pid_status", status,
				"rooms", rooms,
				"conns", conns,
			)
		}
	}
}

// getSelfStats retrieves memory, CPU and OS status for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}

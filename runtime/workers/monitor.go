package workers

import (
	"context"

	"github.com/mikemainguy/video-conferencing-app/observability"
)

// MonitorWorker runs the monitoring snapshot loop under supervision.
type MonitorWorker struct {
	monitoring *observability.MonitoringManager
}

func NewMonitorWorker(monitoring *observability.MonitoringManager) *MonitorWorker {
	return &MonitorWorker{monitoring: monitoring}
}

func (w *MonitorWorker) Run(ctx context.Context) error {
	w.monitoring.Listen(ctx)
	return ctx.Err()
}

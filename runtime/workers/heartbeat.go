package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
	"talkify/observability"
)

const heartbeatInterval = 30 * time.Second

// HeartbeatWorker logs one line of process health and pipeline counters at
// a fixed interval, so a log tail is enough to judge whether the server is
// alive and keeping up.
type HeartbeatWorker struct {
	log     *slog.Logger
	monitor *observability.Monitor
}

func NewHeartbeatWorker(log *slog.Logger, monitor *observability.Monitor) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitor: monitor}
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
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			stats := w.monitor.GetLatest()
			w.log.Info("Heartbeat",
				slog.Int64("active_connections", stats.ActiveConnections),
				slog.Uint64("messages_sent", stats.MessagesSent),
				slog.Uint64("messages_delivered", stats.MessagesDelivered),
				slog.Uint64("messages_read", stats.MessagesRead),
				slog.Uint64("translation_fallbacks", stats.TranslationFallbacks),
				slog.Uint64("rss_bytes", rss),
				slog.Float64("cpu_percent", cpu),
			)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}

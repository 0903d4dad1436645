// Package observability aggregates delivery-pipeline counters for the stats
// endpoint and the heartbeat log line.
package observability

import (
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
)

// Stats is one snapshot of the pipeline counters plus Go runtime metrics.
type Stats struct {
	UptimeSeconds        int64  `json:"uptime_seconds"`
	ActiveConnections    int64  `json:"active_connections"`
	MessagesSent         uint64 `json:"messages_sent"`
	MessagesDelivered    uint64 `json:"messages_delivered"`
	MessagesRead         uint64 `json:"messages_read"`
	MessagesCensored     uint64 `json:"messages_censored"`
	TranslationFallbacks uint64 `json:"translation_fallbacks"`
	AllocMemMb           uint64 `json:"alloc_mem_mb"`
	NumGC                uint32 `json:"num_gc"`
}

// Monitor collects counters from concurrent event handlers. All mutation is
// atomic; reading a snapshot never blocks the delivery path.
type Monitor struct {
	log     *slog.Logger
	started time.Time

	activeConnections    atomic.Int64
	messagesSent         atomic.Uint64
	messagesDelivered    atomic.Uint64
	messagesRead         atomic.Uint64
	messagesCensored     atomic.Uint64
	translationFallbacks atomic.Uint64
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log, started: time.Now().UTC()}
}

func (m *Monitor) IncrMessagesSent()         { m.messagesSent.Add(1) }
func (m *Monitor) IncrMessagesDelivered()    { m.messagesDelivered.Add(1) }
func (m *Monitor) IncrMessagesRead(n uint64) { m.messagesRead.Add(n) }
func (m *Monitor) IncrMessagesCensored()     { m.messagesCensored.Add(1) }
func (m *Monitor) IncrTranslationFallback()  { m.translationFallbacks.Add(1) }

func (m *Monitor) SetActiveConnections(n int) { m.activeConnections.Store(int64(n)) }

// GetLatest assembles a consistent-enough snapshot for diagnostics. Counters
// are read individually; exact cross-counter consistency is not needed here.
func (m *Monitor) GetLatest() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Stats{
		UptimeSeconds:        int64(time.Since(m.started).Seconds()),
		ActiveConnections:    m.activeConnections.Load(),
		MessagesSent:         m.messagesSent.Load(),
		MessagesDelivered:    m.messagesDelivered.Load(),
		MessagesRead:         m.messagesRead.Load(),
		MessagesCensored:     m.messagesCensored.Load(),
		TranslationFallbacks: m.translationFallbacks.Load(),
		AllocMemMb:           mem.Alloc / 1024 / 1024,
		NumGC:                mem.NumGC,
	}
}

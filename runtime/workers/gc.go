package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	gcInterval     = 5 * time.Minute
	gcDiscardRatio = 0.5
)

// BadgerGCWorker reclaims value-log space. Badger never runs this on its
// own; without the loop the value log only grows.
type BadgerGCWorker struct {
	log *slog.Logger
	db  *badger.DB
}

func NewBadgerGCWorker(log *slog.Logger, db *badger.DB) *BadgerGCWorker {
	return &BadgerGCWorker{log: log, db: db}
}

func (w *BadgerGCWorker) Run(ctx context.Context) error {
	w.log.Info("Starting badger GC worker")
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// One call rewrites at most one value log file; loop until
			// there is nothing left worth rewriting.
			for {
				err := w.db.RunValueLogGC(gcDiscardRatio)
				if stderrors.Is(err, badger.ErrNoRewrite) {
					break
				}
				if err != nil {
					w.log.Warn("Value log GC failed", "err", err)
					break
				}
				w.log.Debug("Value log file reclaimed")
			}
		}
	}
}

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/flashcountry-pvp/internal/docstore"
)

const (
	DefaultReapInterval = 5 * time.Minute
	DefaultMaxRoomAge   = time.Hour
)

// Reaper deletes rooms older than MaxAge whatever their state.
type Reaper struct {
	store    docstore.Store
	interval time.Duration
	maxAge   time.Duration
	log      *zap.Logger
}

func NewReaper(store docstore.Store, interval, maxAge time.Duration, log *zap.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxRoomAge
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{store: store, interval: interval, maxAge: maxAge, log: log}
}

// Run sweeps every interval until ctx ends.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				r.log.Warn("reaper sweep", zap.Int("removed", n), zap.Error(err))
			} else if n > 0 {
				r.log.Info("reaper sweep", zap.Int("removed", n))
			}
		}
	}
}

// Sweep removes every expired room once and reports how many went.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	now, err := r.store.Now(ctx)
	if err != nil {
		return 0, err
	}
	expired, err := r.store.Query(ctx, docstore.Query{CreatedBefore: now.Add(-r.maxAge)})
	if err != nil {
		return 0, fmt.Errorf("list expired rooms: %w", err)
	}

	var errs error
	n := 0
	for _, rm := range expired {
		err := r.store.Remove(ctx, rm.Code)
		switch {
		case err == nil:
			n++
			r.log.Debug("room reaped", zap.String("room", rm.Code), zap.String("status", string(rm.Status)))
		case errors.Is(err, docstore.ErrNotFound):
		default:
			errs = multierr.Append(errs, fmt.Errorf("remove %s: %w", rm.Code, err))
		}
	}
	return n, errs
}

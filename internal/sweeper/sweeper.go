// Package sweeper retires pending requests nobody responded to in time.
// Instant requests expire a fixed TTL after creation; scheduled requests
// expire once their scheduled time is a configured leeway in the past. Both
// classes run inside one transaction so a crash cannot expire one class
// without the other, and the predicate is idempotent so re-running a sweep is
// always safe.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/devsmilefactory/moversfinder-sub006/internal/models"
	"github.com/devsmilefactory/moversfinder-sub006/internal/observability"
	"github.com/devsmilefactory/moversfinder-sub006/internal/propagator"
)

type Config struct {
	InstantTTL      time.Duration
	ScheduledLeeway time.Duration
}

type Result struct {
	ExpiredInstant   int64     `json:"expired_instant_count"`
	ExpiredScheduled int64     `json:"expired_scheduled_count"`
	InstantCutoff    time.Time `json:"instant_cutoff"`
	ScheduledCutoff  time.Time `json:"scheduled_cutoff"`
}

// Cutoffs computes the per-class expiry boundaries for a sweep at now.
func Cutoffs(now time.Time, cfg Config) (instant, scheduled time.Time) {
	return now.Add(-cfg.InstantTTL), now.Add(-cfg.ScheduledLeeway)
}

// Sweep expires both classes in one transaction and reports what it did.
// Offers on expired requests are left untouched; expiration is a request
// lifecycle event only.
func Sweep(ctx context.Context, db *gorm.DB, broker *propagator.Broker, now time.Time, cfg Config) (Result, error) {
	instantCutoff, scheduledCutoff := Cutoffs(now, cfg)
	res := Result{InstantCutoff: instantCutoff, ScheduledCutoff: scheduledCutoff}

	var expiredIDs []uint
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var instantIDs, scheduledIDs []uint
		if err := tx.Model(&models.Request{}).
			Where("status = ? AND timing_class = ? AND created_at < ?",
				models.RequestStatusPending, models.TimingClassInstant, instantCutoff).
			Pluck("id", &instantIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Request{}).
			Where("status = ? AND timing_class = ? AND scheduled_at < ?",
				models.RequestStatusPending, models.TimingClassScheduled, scheduledCutoff).
			Pluck("id", &scheduledIDs).Error; err != nil {
			return err
		}

		// One batched update per class, both guarded on status so a
		// concurrent sweep or accept cannot double-expire a row.
		for _, batch := range []struct {
			ids   []uint
			count *int64
		}{
			{instantIDs, &res.ExpiredInstant},
			{scheduledIDs, &res.ExpiredScheduled},
		} {
			if len(batch.ids) == 0 {
				continue
			}
			update := tx.Model(&models.Request{}).
				Where("id IN ? AND status = ?", batch.ids, models.RequestStatusPending).
				Updates(map[string]interface{}{
					"status":            models.RequestStatusExpired,
					"status_updated_at": now,
				})
			if update.Error != nil {
				return update.Error
			}
			*batch.count = update.RowsAffected
		}
		expiredIDs = append(append(expiredIDs, instantIDs...), scheduledIDs...)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	observability.ExpiredTotal.WithLabelValues(models.TimingClassInstant).Add(float64(res.ExpiredInstant))
	observability.ExpiredTotal.WithLabelValues(models.TimingClassScheduled).Add(float64(res.ExpiredScheduled))

	if broker != nil {
		for _, id := range expiredIDs {
			broker.Publish(propagator.Event{
				Table: "requests", RowID: id, RequestID: id, Op: propagator.OpUpdate,
			})
		}
	}
	return res, nil
}

// Runner executes sweeps on a fixed interval until its context is cancelled.
type Runner struct {
	DB       *gorm.DB
	Broker   *propagator.Broker
	Cfg      Config
	Interval time.Duration
	Logger   *slog.Logger
}

func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := Sweep(ctx, r.DB, r.Broker, time.Now(), r.Cfg)
			if err != nil {
				r.Logger.Error("sweep failed", "err", err)
				continue
			}
			if res.ExpiredInstant+res.ExpiredScheduled > 0 {
				r.Logger.Info("sweep expired requests",
					"instant", res.ExpiredInstant,
					"scheduled", res.ExpiredScheduled,
					"instant_cutoff", res.InstantCutoff,
					"scheduled_cutoff", res.ScheduledCutoff,
				)
			}
		}
	}
}

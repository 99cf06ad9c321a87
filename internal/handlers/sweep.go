package handlers

import (
	"time"

	"github.com/devsmilefactory/moversfinder-sub006/internal/propagator"
	"github.com/devsmilefactory/moversfinder-sub006/internal/sweeper"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TriggerSweep runs one expiration pass on demand. The sweep predicate is
// idempotent, so operators and schedulers can hit this as often as they like.
func TriggerSweep(db *gorm.DB, broker *propagator.Broker, cfg sweeper.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := sweeper.Sweep(c.Request.Context(), db, broker, time.Now(), cfg)
		if err != nil {
			c.JSON(500, gin.H{"success": false, "error": "Sweep failed"})
			return
		}

		c.JSON(200, gin.H{
			"success":                 true,
			"expired_instant_count":   res.ExpiredInstant,
			"expired_scheduled_count": res.ExpiredScheduled,
			"instant_cutoff":          res.InstantCutoff,
			"scheduled_cutoff":        res.ScheduledCutoff,
		})
	}
}

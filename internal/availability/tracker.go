// Package availability maintains the per-provider presence row: online flag,
// availability flag, last known position and the request currently occupying
// the provider. Busy state is owned by the dispatch coordinator; this package
// only handles the provider's own session updates and the release path.
package availability

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/devsmilefactory/moversfinder-sub006/internal/models"
	"github.com/devsmilefactory/moversfinder-sub006/internal/services"
)

type Tracker struct {
	DB *gorm.DB
}

// SetOnline flips the provider's presence. Going online makes an idle
// provider available; going offline hides them from matching but never
// clears an active engagement, because a ride in progress is a ride in
// progress regardless of client visibility.
func (t *Tracker) SetOnline(ctx context.Context, providerID uint, online bool) (models.ProviderAvailability, error) {
	row, err := t.loadOrCreate(ctx, providerID)
	if err != nil {
		return models.ProviderAvailability{}, err
	}

	if online {
		row.IsOnline = true
		row.IsAvailable = !row.Engaged()
	} else {
		applyOffline(&row)
	}

	if err := t.DB.WithContext(ctx).Save(&row).Error; err != nil {
		return models.ProviderAvailability{}, err
	}

	// Mirror is best-effort; the row stays authoritative.
	_ = services.SetProviderAvailability(ctx, providerID, row.IsAvailable)
	return row, nil
}

// UpdatePosition records the provider's last known coordinates.
func (t *Tracker) UpdatePosition(ctx context.Context, providerID uint, lat, lng float64) (models.ProviderAvailability, error) {
	row, err := t.loadOrCreate(ctx, providerID)
	if err != nil {
		return models.ProviderAvailability{}, err
	}

	applyPosition(&row, lat, lng)
	if err := t.DB.WithContext(ctx).Save(&row).Error; err != nil {
		return models.ProviderAvailability{}, err
	}

	_ = services.SetProviderPosition(ctx, providerID, lat, lng)
	_ = services.SetProviderAvailability(ctx, providerID, row.IsAvailable)
	return row, nil
}

// Get returns the provider's current row.
func (t *Tracker) Get(ctx context.Context, providerID uint) (models.ProviderAvailability, error) {
	var row models.ProviderAvailability
	err := t.DB.WithContext(ctx).Where("provider_id = ?", providerID).First(&row).Error
	return row, err
}

func (t *Tracker) loadOrCreate(ctx context.Context, providerID uint) (models.ProviderAvailability, error) {
	var row models.ProviderAvailability
	err := t.DB.WithContext(ctx).Where("provider_id = ?", providerID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = models.ProviderAvailability{ProviderID: providerID}
		if err := t.DB.WithContext(ctx).Create(&row).Error; err != nil {
			return models.ProviderAvailability{}, err
		}
		return row, nil
	}
	if err != nil {
		return models.ProviderAvailability{}, err
	}
	return row, nil
}

// applyOffline clears visibility without touching a live engagement.
func applyOffline(row *models.ProviderAvailability) {
	row.IsOnline = false
	row.IsAvailable = false
}

// applyPosition records coordinates and implies presence: a provider sending
// location pings is online, and available unless engaged.
func applyPosition(row *models.ProviderAvailability, lat, lng float64) {
	row.Lat = lat
	row.Lng = lng
	row.IsOnline = true
	row.IsAvailable = !row.Engaged()
}

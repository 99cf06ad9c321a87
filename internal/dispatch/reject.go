package dispatch

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/devsmilefactory/moversfinder-sub006/internal/models"
	"github.com/devsmilefactory/moversfinder-sub006/internal/propagator"
)

// Withdraw lets a provider pull their own pending offer. Single guarded row
// update; a concurrently committed Accept wins and the caller sees
// offer_not_pending.
func (c *Coordinator) Withdraw(ctx context.Context, offerID, providerID uint) (models.Offer, error) {
	return c.closeOffer(ctx, offerID, models.OfferStatusWithdrawn, func(offer *models.Offer, req *models.Request) error {
		if offer.ProviderID != providerID {
			return ErrNotFound
		}
		return nil
	})
}

// Decline lets a requester turn down one specific bid without accepting
// another.
func (c *Coordinator) Decline(ctx context.Context, offerID, requesterID uint) (models.Offer, error) {
	return c.closeOffer(ctx, offerID, models.OfferStatusRejected, func(offer *models.Offer, req *models.Request) error {
		if req == nil || req.RequesterID != requesterID {
			return ErrNotFound
		}
		return nil
	})
}

func (c *Coordinator) closeOffer(ctx context.Context, offerID uint, status string, authorize func(*models.Offer, *models.Request) error) (models.Offer, error) {
	var offer models.Offer
	if err := c.DB.WithContext(ctx).Preload("Request").First(&offer, offerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Offer{}, ErrNotFound
		}
		return models.Offer{}, err
	}
	if err := authorize(&offer, offer.Request); err != nil {
		return models.Offer{}, err
	}
	if offer.Terminal() {
		return offer, ErrOfferNotPending
	}

	now := time.Now()
	result := c.DB.WithContext(ctx).Model(&models.Offer{}).
		Where("id = ? AND status = ?", offerID, models.OfferStatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"responded_at": now,
		})
	if result.Error != nil {
		return models.Offer{}, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race against an Accept or another close; report terminal.
		c.DB.WithContext(ctx).First(&offer, offerID)
		return offer, ErrOfferNotPending
	}

	offer.Status = status
	offer.RespondedAt = &now
	if c.Broker != nil {
		c.Broker.Publish(propagator.Event{
			Table: "offers", RowID: offer.ID, RequestID: offer.RequestID, Op: propagator.OpUpdate,
		})
	}
	return offer, nil
}

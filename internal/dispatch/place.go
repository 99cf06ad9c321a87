package dispatch

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devsmilefactory/moversfinder-sub006/internal/models"
	"github.com/devsmilefactory/moversfinder-sub006/internal/propagator"
)

type PlaceParams struct {
	RequestID    uint
	ProviderID   uint
	QuotedAmount float64
	Message      string
}

// Place creates a pending offer on a pending request. The request row is
// locked for the duration so an Accept committing concurrently cannot leave
// an orphaned pending offer on an already-assigned request.
func (c *Coordinator) Place(ctx context.Context, p PlaceParams) (models.Offer, models.Request, error) {
	var (
		req   models.Request
		offer models.Offer
	)
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&req, p.RequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var avail models.ProviderAvailability
		if err := tx.Where("provider_id = ?", p.ProviderID).First(&avail).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProviderUnavailable
			}
			return err
		}

		if err := evaluatePlacement(&req, &avail); err != nil {
			return err
		}

		offer = models.Offer{
			RequestID:    p.RequestID,
			ProviderID:   p.ProviderID,
			QuotedAmount: p.QuotedAmount,
			Message:      p.Message,
			Status:       models.OfferStatusPending,
			OfferedAt:    time.Now(),
		}
		return tx.Create(&offer).Error
	})
	if err != nil {
		return models.Offer{}, models.Request{}, c.mapError(err)
	}

	if c.Broker != nil {
		c.Broker.Publish(propagator.Event{
			Table: "offers", RowID: offer.ID, RequestID: offer.RequestID, Op: propagator.OpInsert,
		})
	}
	return offer, req, nil
}

// evaluatePlacement checks the placement preconditions: the request must
// still be open for bids and the provider must be online.
func evaluatePlacement(req *models.Request, avail *models.ProviderAvailability) error {
	if req.Status != models.RequestStatusPending {
		return ErrRequestNotPending
	}
	if !avail.IsOnline {
		return ErrProviderUnavailable
	}
	return nil
}

// Package dispatch implements the acceptance coordinator: the one operation
// in the system that turns exactly one pending offer into an assignment. All
// competing writers are serialized through row locks taken in a fixed order,
// request first, then provider_availability.
package dispatch

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devsmilefactory/moversfinder-sub006/internal/models"
	"github.com/devsmilefactory/moversfinder-sub006/internal/observability"
	"github.com/devsmilefactory/moversfinder-sub006/internal/propagator"
)

type Coordinator struct {
	DB     *gorm.DB
	Broker *propagator.Broker

	// TxTimeout bounds the acceptance transaction. A caller that cannot get
	// its locks in time receives transient_conflict instead of holding the
	// queue.
	TxTimeout time.Duration
}

type AcceptParams struct {
	RequestID   uint
	OfferID     uint
	ProviderID  uint
	RequesterID uint
}

type AcceptResult struct {
	Request models.Request
	Offer   models.Offer
	// AlreadyApplied is set when this call found the exact same assignment
	// already committed, i.e. a retry after a timed-out first attempt.
	AlreadyApplied bool
	// RejectedOfferIDs are the sibling offers auto-rejected in the same
	// transaction.
	RejectedOfferIDs []uint
}

// Accept runs the acceptance preconditions and effects in one transaction.
// Precondition failures come back as business errors; lock contention and
// deadline hits come back as ErrTransientConflict.
func (c *Coordinator) Accept(ctx context.Context, p AcceptParams) (AcceptResult, error) {
	started := time.Now()
	res, err := c.accept(ctx, p)
	observability.AcceptLatency.Observe(time.Since(started).Seconds())
	observability.AcceptsTotal.WithLabelValues(acceptOutcome(res, err)).Inc()
	if err != nil {
		return res, err
	}

	if !res.AlreadyApplied {
		c.publishAssignment(res)
	}
	return res, nil
}

func (c *Coordinator) accept(ctx context.Context, p AcceptParams) (AcceptResult, error) {
	if c.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.TxTimeout)
		defer cancel()
	}

	var res AcceptResult
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock order: request row first, provider_availability second. The
		// completion/cancellation path takes the same two locks in the same
		// order, so the two writers cannot deadlock.
		var req models.Request
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&req, p.RequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var offer models.Offer
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&offer, p.OfferID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		alreadyApplied, err := evaluateOffer(&offer, &req, p)
		if err != nil {
			return err
		}
		if alreadyApplied {
			res = AcceptResult{Request: req, Offer: offer, AlreadyApplied: true}
			return nil
		}

		var avail models.ProviderAvailability
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_id = ?", p.ProviderID).
			First(&avail).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProviderUnavailable
			}
			return err
		}
		if err := evaluateAvailability(&avail); err != nil {
			return err
		}

		now := time.Now()

		accepted := tx.Model(&models.Offer{}).
			Where("id = ? AND status = ?", offer.ID, models.OfferStatusPending).
			Updates(map[string]interface{}{
				"status":       models.OfferStatusAccepted,
				"responded_at": now,
			})
		if accepted.Error != nil {
			return accepted.Error
		}
		if accepted.RowsAffected != 1 {
			// The row was locked and pending moments ago; anything else is
			// contention the caller may retry.
			return ErrTransientConflict
		}

		var siblingIDs []uint
		if err := tx.Model(&models.Offer{}).
			Where("request_id = ? AND status = ? AND id <> ?", req.ID, models.OfferStatusPending, offer.ID).
			Pluck("id", &siblingIDs).Error; err != nil {
			return err
		}
		if len(siblingIDs) > 0 {
			if err := tx.Model(&models.Offer{}).
				Where("id IN ?", siblingIDs).
				Updates(map[string]interface{}{
					"status":       models.OfferStatusRejected,
					"responded_at": now,
				}).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Request{}).
			Where("id = ?", req.ID).
			Updates(map[string]interface{}{
				"status":               models.RequestStatusActive,
				"assigned_provider_id": p.ProviderID,
				"status_updated_at":    now,
			}).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.ProviderAvailability{}).
			Where("provider_id = ?", p.ProviderID).
			Updates(map[string]interface{}{
				"is_available":      false,
				"active_request_id": req.ID,
			}).Error; err != nil {
			return err
		}

		req.Status = models.RequestStatusActive
		req.AssignedProviderID = &p.ProviderID
		req.StatusUpdatedAt = now
		offer.Status = models.OfferStatusAccepted
		offer.RespondedAt = &now
		res = AcceptResult{Request: req, Offer: offer, RejectedOfferIDs: siblingIDs}
		return nil
	})
	if err != nil {
		return AcceptResult{}, c.mapError(err)
	}
	return res, nil
}

// evaluateOffer checks the offer and request preconditions against the
// locked rows.
// It reports alreadyApplied when the identical assignment has committed
// before, so retries return the terminal state instead of a failure.
func evaluateOffer(offer *models.Offer, req *models.Request, p AcceptParams) (bool, error) {
	if offer.RequestID != p.RequestID || offer.ProviderID != p.ProviderID {
		return false, ErrOfferNotPending
	}
	if offer.Terminal() {
		if offer.Status == models.OfferStatusAccepted &&
			req.Status == models.RequestStatusActive &&
			req.AssignedProviderID != nil && *req.AssignedProviderID == p.ProviderID &&
			req.RequesterID == p.RequesterID {
			return true, nil
		}
		return false, ErrOfferNotPending
	}
	if req.Status != models.RequestStatusPending {
		return false, ErrRequestNotPending
	}
	if req.RequesterID != p.RequesterID {
		return false, ErrRequestNotPending
	}
	return false, nil
}

// evaluateAvailability checks the provider precondition: the provider must be free
// and not already engaged on another request.
func evaluateAvailability(avail *models.ProviderAvailability) error {
	if !avail.IsAvailable || avail.ActiveRequestID != nil {
		return ErrProviderUnavailable
	}
	return nil
}

func (c *Coordinator) mapError(err error) error {
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || transientDBError(err) {
		return ErrTransientConflict
	}
	return err
}

func (c *Coordinator) publishAssignment(res AcceptResult) {
	if c.Broker == nil {
		return
	}
	c.Broker.Publish(propagator.Event{
		Table: "requests", RowID: res.Request.ID, RequestID: res.Request.ID, Op: propagator.OpUpdate,
	})
	c.Broker.Publish(propagator.Event{
		Table: "offers", RowID: res.Offer.ID, RequestID: res.Request.ID, Op: propagator.OpUpdate,
	})
	for _, id := range res.RejectedOfferIDs {
		c.Broker.Publish(propagator.Event{
			Table: "offers", RowID: id, RequestID: res.Request.ID, Op: propagator.OpUpdate,
		})
	}
}

func acceptOutcome(res AcceptResult, err error) string {
	switch {
	case err == nil && res.AlreadyApplied:
		return "already_applied"
	case err == nil:
		return "assigned"
	default:
		if code, ok := CodeOf(err); ok {
			return string(code)
		}
		return "error"
	}
}

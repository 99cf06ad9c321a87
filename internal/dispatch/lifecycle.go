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

// Complete finalizes an active request for its assigned provider and frees
// the provider in the same transaction. It takes the request lock before the
// availability lock, mirroring Accept, so the two paths never deadlock.
func (c *Coordinator) Complete(ctx context.Context, requestID, providerID uint) (models.Request, error) {
	var req models.Request
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&req, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if req.Status != models.RequestStatusActive ||
			req.AssignedProviderID == nil || *req.AssignedProviderID != providerID {
			return ErrRequestNotPending
		}

		now := time.Now()
		if err := tx.Model(&models.Request{}).
			Where("id = ?", req.ID).
			Updates(map[string]interface{}{
				"status":            models.RequestStatusCompleted,
				"status_updated_at": now,
			}).Error; err != nil {
			return err
		}
		if err := releaseProvider(tx, providerID); err != nil {
			return err
		}
		req.Status = models.RequestStatusCompleted
		req.StatusUpdatedAt = now
		return nil
	})
	if err != nil {
		return models.Request{}, c.mapError(err)
	}
	c.publishRequestUpdate(req.ID)
	return req, nil
}

// Cancel retires a request. A pending request is a guarded single-row update
// with no locking; cancelling an active request releases the assigned
// provider under the same two-lock discipline as Accept.
func (c *Coordinator) Cancel(ctx context.Context, requestID, actorID uint, actorType string) (models.Request, error) {
	var req models.Request
	if err := c.DB.WithContext(ctx).First(&req, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Request{}, ErrNotFound
		}
		return models.Request{}, err
	}
	if err := authorizeCancel(&req, actorID, actorType); err != nil {
		return models.Request{}, err
	}

	switch req.Status {
	case models.RequestStatusPending:
		return c.cancelPending(ctx, req)
	case models.RequestStatusActive:
		return c.cancelActive(ctx, req.ID)
	default:
		return models.Request{}, ErrRequestNotPending
	}
}

func authorizeCancel(req *models.Request, actorID uint, actorType string) error {
	switch actorType {
	case string(models.UserTypeRequester):
		if req.RequesterID != actorID {
			return ErrNotFound
		}
	case string(models.UserTypeProvider):
		if req.AssignedProviderID == nil || *req.AssignedProviderID != actorID {
			return ErrNotFound
		}
	default:
		return ErrNotFound
	}
	return nil
}

func (c *Coordinator) cancelPending(ctx context.Context, req models.Request) (models.Request, error) {
	now := time.Now()
	result := c.DB.WithContext(ctx).Model(&models.Request{}).
		Where("id = ? AND status = ?", req.ID, models.RequestStatusPending).
		Updates(map[string]interface{}{
			"status":            models.RequestStatusCancelled,
			"status_updated_at": now,
		})
	if result.Error != nil {
		return models.Request{}, result.Error
	}
	if result.RowsAffected == 0 {
		// An Accept committed first; the caller must see the fresh state.
		return models.Request{}, ErrRequestNotPending
	}
	req.Status = models.RequestStatusCancelled
	req.StatusUpdatedAt = now
	c.publishRequestUpdate(req.ID)
	return req, nil
}

func (c *Coordinator) cancelActive(ctx context.Context, requestID uint) (models.Request, error) {
	var req models.Request
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&req, requestID).Error; err != nil {
			return err
		}
		if req.Status != models.RequestStatusActive || req.AssignedProviderID == nil {
			return ErrRequestNotPending
		}

		now := time.Now()
		if err := tx.Model(&models.Request{}).
			Where("id = ?", req.ID).
			Updates(map[string]interface{}{
				"status":            models.RequestStatusCancelled,
				"status_updated_at": now,
			}).Error; err != nil {
			return err
		}
		if err := releaseProvider(tx, *req.AssignedProviderID); err != nil {
			return err
		}
		req.Status = models.RequestStatusCancelled
		req.StatusUpdatedAt = now
		return nil
	})
	if err != nil {
		return models.Request{}, c.mapError(err)
	}
	c.publishRequestUpdate(req.ID)
	return req, nil
}

// releaseProvider clears the engagement and restores availability. Callers
// must already hold the request row lock.
func releaseProvider(tx *gorm.DB, providerID uint) error {
	var avail models.ProviderAvailability
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider_id = ?", providerID).
		First(&avail).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No availability row means nothing to release.
			return nil
		}
		return err
	}
	// A provider who went offline mid-engagement stays unavailable until they
	// come back online.
	return tx.Model(&models.ProviderAvailability{}).
		Where("provider_id = ?", providerID).
		Updates(map[string]interface{}{
			"is_available":      avail.IsOnline,
			"active_request_id": nil,
		}).Error
}

func (c *Coordinator) publishRequestUpdate(requestID uint) {
	if c.Broker == nil {
		return
	}
	c.Broker.Publish(propagator.Event{
		Table: "requests", RowID: requestID, RequestID: requestID, Op: propagator.OpUpdate,
	})
}

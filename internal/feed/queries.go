package feed

import (
	"context"

	"gorm.io/gorm"

	"github.com/devsmilefactory/moversfinder-sub006/internal/models"
)

const defaultPerPage = 20

// GormFetcher runs the authoritative tab queries for one user against the
// state store. Tabs are scoped by role: providers see the open market and
// their own bids, requesters see their own requests and the bids on them.
type GormFetcher struct {
	DB       *gorm.DB
	UserID   uint
	UserType string
}

func (f *GormFetcher) Fetch(ctx context.Context, q Query) ([]Row, error) {
	if q.PerPage <= 0 {
		q.PerPage = defaultPerPage
	}
	if q.Page < 1 {
		q.Page = 1
	}
	offset := (q.Page - 1) * q.PerPage

	db := f.DB.WithContext(ctx)
	switch q.Tab {
	case TabOpen:
		return f.openRequests(db, offset, q.PerPage)
	case TabBids:
		return f.bids(db, offset, q.PerPage)
	case TabActive:
		return f.requestsByStatus(db, offset, q.PerPage, []string{models.RequestStatusActive})
	case TabDone:
		return f.requestsByStatus(db, offset, q.PerPage, []string{
			models.RequestStatusCompleted,
			models.RequestStatusCancelled,
			models.RequestStatusExpired,
		})
	default:
		return nil, nil
	}
}

func (f *GormFetcher) openRequests(db *gorm.DB, offset, limit int) ([]Row, error) {
	query := db.Model(&models.Request{}).Where("status = ?", models.RequestStatusPending)
	if f.UserType == string(models.UserTypeRequester) {
		query = query.Where("requester_id = ?", f.UserID)
	}

	var requests []models.Request
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, err
	}
	return requestRows(requests), nil
}

func (f *GormFetcher) bids(db *gorm.DB, offset, limit int) ([]Row, error) {
	query := db.Model(&models.Offer{})
	if f.UserType == string(models.UserTypeProvider) {
		query = query.Where("provider_id = ?", f.UserID)
	} else {
		query = query.Where(
			"request_id IN (?)",
			db.Model(&models.Request{}).Select("id").Where("requester_id = ?", f.UserID),
		)
	}

	var offers []models.Offer
	if err := query.Order("offered_at DESC").Offset(offset).Limit(limit).Find(&offers).Error; err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(offers))
	for _, o := range offers {
		rows = append(rows, Row{
			Kind:         "offer",
			ID:           o.ID,
			RequestID:    o.RequestID,
			Status:       o.Status,
			QuotedAmount: o.QuotedAmount,
		})
	}
	return rows, nil
}

func (f *GormFetcher) requestsByStatus(db *gorm.DB, offset, limit int, statuses []string) ([]Row, error) {
	query := db.Model(&models.Request{}).Where("status IN ?", statuses)
	if f.UserType == string(models.UserTypeProvider) {
		query = query.Where("assigned_provider_id = ?", f.UserID)
	} else {
		query = query.Where("requester_id = ?", f.UserID)
	}

	var requests []models.Request
	if err := query.Order("status_updated_at DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, err
	}
	return requestRows(requests), nil
}

func requestRows(requests []models.Request) []Row {
	rows := make([]Row, 0, len(requests))
	for _, r := range requests {
		rows = append(rows, Row{
			Kind:         "request",
			ID:           r.ID,
			RequestID:    r.ID,
			Status:       r.Status,
			FareEstimate: r.FareEstimate,
			PickupAddr:   r.PickupAddr,
			DestAddr:     r.DestAddr,
		})
	}
	return rows
}

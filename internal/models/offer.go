package models

import (
	"time"

	"gorm.io/gorm"
)

// Offer represents one provider's bid on one request. Rows are append-mostly:
// a provider creates them while the request is pending, and only the
// coordinator or an explicit withdrawal moves them to a terminal status.
type Offer struct {
	gorm.Model
	RequestID    uint       `json:"requestId" gorm:"not null;index:idx_offers_request_status"`
	ProviderID   uint       `json:"providerId" gorm:"not null;index"`
	QuotedAmount float64    `json:"quotedAmount" gorm:"not null"`
	Message      string     `json:"message,omitempty"`
	Status       string     `json:"status" gorm:"not null;default:'pending';index:idx_offers_request_status"`
	OfferedAt    time.Time  `json:"offeredAt" gorm:"not null"`
	RespondedAt  *time.Time `json:"respondedAt,omitempty"`
	Request      *Request   `json:"request,omitempty" gorm:"foreignKey:RequestID"`
	Provider     *User      `json:"provider,omitempty" gorm:"foreignKey:ProviderID"`
}

// TableName specifies the table name
func (Offer) TableName() string {
	return "offers"
}

// OfferStatus constants
const (
	OfferStatusPending   = "pending"
	OfferStatusAccepted  = "accepted"
	OfferStatusRejected  = "rejected"
	OfferStatusWithdrawn = "withdrawn"
)

// Terminal reports whether the offer has reached a final status. Terminal
// offers are immutable.
func (o *Offer) Terminal() bool {
	return o.Status != OfferStatusPending
}

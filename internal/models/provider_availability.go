package models

import (
	"gorm.io/gorm"
)

// ProviderAvailability tracks one provider's online/available flags, last
// known position and the request currently occupying them. It is updated by
// the provider's own session for presence and position, and by the
// coordinator or the completion/cancellation path for busy state.
//
// Invariant: IsAvailable is false whenever ActiveRequestID is non-nil.
type ProviderAvailability struct {
	gorm.Model
	ProviderID      uint    `json:"providerId" gorm:"not null;uniqueIndex"`
	IsOnline        bool    `json:"isOnline" gorm:"not null;default:false"`
	IsAvailable     bool    `json:"isAvailable" gorm:"not null;default:false"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	ActiveRequestID *uint   `json:"activeRequestId,omitempty"`
	Provider        *User   `json:"provider,omitempty" gorm:"foreignKey:ProviderID"`
}

// TableName specifies the table name
func (ProviderAvailability) TableName() string {
	return "provider_availability"
}

// Engaged reports whether the provider is currently tied to an active
// request.
func (a *ProviderAvailability) Engaged() bool {
	return a.ActiveRequestID != nil
}

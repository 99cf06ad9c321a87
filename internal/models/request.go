package models

import (
	"time"

	"gorm.io/gorm"
)

// Request represents one transportation job posted by a requester.
// Pickup, destination and fare fields are opaque attributes supplied by the
// booking surface; the dispatch engine never interprets them.
type Request struct {
	gorm.Model
	RequesterID        uint       `json:"requesterId" gorm:"not null;index"`
	AssignedProviderID *uint      `json:"assignedProviderId,omitempty" gorm:"index"`
	Status             string     `json:"status" gorm:"not null;default:'pending';index"`
	TimingClass        string     `json:"timingClass" gorm:"not null;default:'instant'"`
	ScheduledAt        *time.Time `json:"scheduledAt,omitempty"`
	StatusUpdatedAt    time.Time  `json:"statusUpdatedAt" gorm:"not null"`
	PickupLat          float64    `json:"pickupLat"`
	PickupLng          float64    `json:"pickupLng"`
	PickupAddr         string     `json:"pickupAddress"`
	DestLat            float64    `json:"destLat"`
	DestLng            float64    `json:"destLng"`
	DestAddr           string     `json:"destAddress"`
	FareEstimate       float64    `json:"fareEstimate,omitempty"`
	Requester          *User      `json:"requester,omitempty" gorm:"foreignKey:RequesterID"`
	AssignedProvider   *User      `json:"assignedProvider,omitempty" gorm:"foreignKey:AssignedProviderID"`
	Offers             []Offer    `json:"offers,omitempty" gorm:"foreignKey:RequestID"`
}

// TableName specifies the table name
func (Request) TableName() string {
	return "requests"
}

// RequestStatus constants
const (
	RequestStatusPending   = "pending"
	RequestStatusActive    = "active"
	RequestStatusCompleted = "completed"
	RequestStatusCancelled = "cancelled"
	RequestStatusExpired   = "expired"
)

// TimingClass constants
const (
	TimingClassInstant   = "instant"
	TimingClassScheduled = "scheduled"
)

// requestTransitions encodes the forward-only request state machine.
// A request never moves backward; the zero entry for a status means it is
// terminal.
var requestTransitions = map[string][]string{
	RequestStatusPending: {RequestStatusActive, RequestStatusCancelled, RequestStatusExpired},
	RequestStatusActive:  {RequestStatusCompleted, RequestStatusCancelled},
}

// CanTransition reports whether a request may move from one status to
// another.
func CanTransition(from, to string) bool {
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a request status admits no further transitions.
func RequestStatusTerminal(status string) bool {
	return len(requestTransitions[status]) == 0
}

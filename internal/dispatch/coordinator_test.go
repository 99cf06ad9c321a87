package dispatch

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/devsmilefactory/moversfinder-sub006/internal/models"
)

func uintPtr(v uint) *uint { return &v }

func pendingOffer() models.Offer {
	return models.Offer{
		RequestID:  10,
		ProviderID: 7,
		Status:     models.OfferStatusPending,
	}
}

func pendingRequest() models.Request {
	return models.Request{
		RequesterID: 3,
		Status:      models.RequestStatusPending,
	}
}

func TestEvaluateOffer(t *testing.T) {
	params := AcceptParams{RequestID: 10, OfferID: 1, ProviderID: 7, RequesterID: 3}

	tests := []struct {
		name     string
		offer    func() models.Offer
		request  func() models.Request
		wantErr  *Error
		wantIdem bool
	}{
		{
			name:    "happy path",
			offer:   pendingOffer,
			request: pendingRequest,
		},
		{
			name: "offer belongs to another request",
			offer: func() models.Offer {
				o := pendingOffer()
				o.RequestID = 99
				return o
			},
			request: pendingRequest,
			wantErr: ErrOfferNotPending,
		},
		{
			name: "offer belongs to another provider",
			offer: func() models.Offer {
				o := pendingOffer()
				o.ProviderID = 99
				return o
			},
			request: pendingRequest,
			wantErr: ErrOfferNotPending,
		},
		{
			name: "offer already withdrawn",
			offer: func() models.Offer {
				o := pendingOffer()
				o.Status = models.OfferStatusWithdrawn
				return o
			},
			request: pendingRequest,
			wantErr: ErrOfferNotPending,
		},
		{
			name: "offer already rejected by a competing accept",
			offer: func() models.Offer {
				o := pendingOffer()
				o.Status = models.OfferStatusRejected
				return o
			},
			request: func() models.Request {
				r := pendingRequest()
				r.Status = models.RequestStatusActive
				r.AssignedProviderID = uintPtr(99)
				return r
			},
			wantErr: ErrOfferNotPending,
		},
		{
			name: "identical assignment already committed is idempotent",
			offer: func() models.Offer {
				o := pendingOffer()
				o.Status = models.OfferStatusAccepted
				return o
			},
			request: func() models.Request {
				r := pendingRequest()
				r.Status = models.RequestStatusActive
				r.AssignedProviderID = uintPtr(7)
				return r
			},
			wantIdem: true,
		},
		{
			name: "accepted offer but request moved on is not idempotent",
			offer: func() models.Offer {
				o := pendingOffer()
				o.Status = models.OfferStatusAccepted
				return o
			},
			request: func() models.Request {
				r := pendingRequest()
				r.Status = models.RequestStatusCompleted
				r.AssignedProviderID = uintPtr(7)
				return r
			},
			wantErr: ErrOfferNotPending,
		},
		{
			name:  "request already cancelled",
			offer: pendingOffer,
			request: func() models.Request {
				r := pendingRequest()
				r.Status = models.RequestStatusCancelled
				return r
			},
			wantErr: ErrRequestNotPending,
		},
		{
			name:  "request expired under the caller",
			offer: pendingOffer,
			request: func() models.Request {
				r := pendingRequest()
				r.Status = models.RequestStatusExpired
				return r
			},
			wantErr: ErrRequestNotPending,
		},
		{
			name:  "caller does not own the request",
			offer: pendingOffer,
			request: func() models.Request {
				r := pendingRequest()
				r.RequesterID = 42
				return r
			},
			wantErr: ErrRequestNotPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offer := tt.offer()
			req := tt.request()
			already, err := evaluateOffer(&offer, &req, params)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("evaluateOffer() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("evaluateOffer() unexpected error: %v", err)
			}
			if already != tt.wantIdem {
				t.Fatalf("evaluateOffer() alreadyApplied = %v, want %v", already, tt.wantIdem)
			}
		})
	}
}

func TestEvaluateAvailability(t *testing.T) {
	tests := []struct {
		name    string
		avail   models.ProviderAvailability
		wantErr bool
	}{
		{
			name:  "online and free",
			avail: models.ProviderAvailability{IsOnline: true, IsAvailable: true},
		},
		{
			name:    "marked unavailable",
			avail:   models.ProviderAvailability{IsOnline: true, IsAvailable: false},
			wantErr: true,
		},
		{
			name:    "already engaged on another request",
			avail:   models.ProviderAvailability{IsOnline: true, IsAvailable: true, ActiveRequestID: uintPtr(55)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := evaluateAvailability(&tt.avail)
			if tt.wantErr && !errors.Is(err, ErrProviderUnavailable) {
				t.Fatalf("evaluateAvailability() error = %v, want provider_unavailable", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("evaluateAvailability() unexpected error: %v", err)
			}
		})
	}
}

func TestTransientDBError(t *testing.T) {
	transient := []error{
		errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"),
		errors.New("ERROR: could not serialize access due to concurrent update"),
		errors.New("pq: canceling statement due to lock timeout"),
	}
	for _, err := range transient {
		if !transientDBError(err) {
			t.Errorf("transientDBError(%q) = false, want true", err)
		}
	}

	permanent := []error{
		nil,
		errors.New("record not found"),
		errors.New("duplicate key value violates unique constraint"),
	}
	for _, err := range permanent {
		if transientDBError(err) {
			t.Errorf("transientDBError(%v) = true, want false", err)
		}
	}
}

func TestRetryableAndCodeOf(t *testing.T) {
	if !Retryable(ErrTransientConflict) {
		t.Error("transient_conflict should be retryable")
	}
	for _, err := range []error{ErrOfferNotPending, ErrRequestNotPending, ErrProviderUnavailable, ErrNotFound} {
		if Retryable(err) {
			t.Errorf("%v should not be retryable", err)
		}
	}

	wrapped := fmt.Errorf("accept failed: %w", ErrOfferNotPending)
	code, ok := CodeOf(wrapped)
	if !ok || code != CodeOfferNotPending {
		t.Errorf("CodeOf(wrapped) = %q, %v; want offer_not_pending, true", code, ok)
	}
	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Error("CodeOf(plain error) should report no code")
	}
}

func TestMapError(t *testing.T) {
	c := &Coordinator{TxTimeout: time.Second}

	if got := c.mapError(ErrNotFound); !errors.Is(got, ErrNotFound) {
		t.Errorf("business errors must pass through, got %v", got)
	}
	if got := c.mapError(errors.New("deadlock detected")); !errors.Is(got, ErrTransientConflict) {
		t.Errorf("driver contention must map to transient_conflict, got %v", got)
	}
	plain := errors.New("connection refused")
	if got := c.mapError(plain); !errors.Is(got, plain) {
		t.Errorf("unknown errors must pass through, got %v", got)
	}
}

func TestAcceptOutcomeLabels(t *testing.T) {
	if got := acceptOutcome(AcceptResult{}, nil); got != "assigned" {
		t.Errorf("acceptOutcome(success) = %q", got)
	}
	if got := acceptOutcome(AcceptResult{AlreadyApplied: true}, nil); got != "already_applied" {
		t.Errorf("acceptOutcome(idempotent) = %q", got)
	}
	if got := acceptOutcome(AcceptResult{}, ErrProviderUnavailable); got != "provider_unavailable" {
		t.Errorf("acceptOutcome(business error) = %q", got)
	}
	if got := acceptOutcome(AcceptResult{}, errors.New("boom")); got != "error" {
		t.Errorf("acceptOutcome(unknown error) = %q", got)
	}
}

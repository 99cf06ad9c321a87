package models

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{RequestStatusPending, RequestStatusActive},
		{RequestStatusPending, RequestStatusCancelled},
		{RequestStatusPending, RequestStatusExpired},
		{RequestStatusActive, RequestStatusCompleted},
		{RequestStatusActive, RequestStatusCancelled},
	}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tr[0], tr[1])
		}
	}

	forbidden := [][2]string{
		{RequestStatusActive, RequestStatusPending},
		{RequestStatusActive, RequestStatusExpired},
		{RequestStatusCompleted, RequestStatusActive},
		{RequestStatusCancelled, RequestStatusPending},
		{RequestStatusExpired, RequestStatusActive},
		{RequestStatusPending, RequestStatusCompleted},
	}
	for _, tr := range forbidden {
		if CanTransition(tr[0], tr[1]) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tr[0], tr[1])
		}
	}
}

// Terminal states admit no transitions at all, so a request's status can only
// move forward.
func TestTerminalStatuses(t *testing.T) {
	for _, status := range []string{RequestStatusCompleted, RequestStatusCancelled, RequestStatusExpired} {
		if !RequestStatusTerminal(status) {
			t.Errorf("RequestStatusTerminal(%s) = false, want true", status)
		}
	}
	for _, status := range []string{RequestStatusPending, RequestStatusActive} {
		if RequestStatusTerminal(status) {
			t.Errorf("RequestStatusTerminal(%s) = true, want false", status)
		}
	}
}

func TestOfferTerminal(t *testing.T) {
	pending := Offer{Status: OfferStatusPending}
	if pending.Terminal() {
		t.Error("pending offer must not be terminal")
	}
	for _, status := range []string{OfferStatusAccepted, OfferStatusRejected, OfferStatusWithdrawn} {
		o := Offer{Status: status}
		if !o.Terminal() {
			t.Errorf("offer with status %s must be terminal", status)
		}
	}
}

func TestProviderEngaged(t *testing.T) {
	free := ProviderAvailability{IsOnline: true, IsAvailable: true}
	if free.Engaged() {
		t.Error("provider without an active request must not be engaged")
	}
	id := uint(12)
	busy := ProviderAvailability{IsOnline: true, ActiveRequestID: &id}
	if !busy.Engaged() {
		t.Error("provider with an active request must be engaged")
	}
}

package availability

import (
	"testing"

	"github.com/devsmilefactory/moversfinder-sub006/internal/models"
)

// Going offline hides the provider from matching but never clears an active
// engagement.
func TestApplyOfflineKeepsEngagement(t *testing.T) {
	active := uint(42)
	row := models.ProviderAvailability{
		ProviderID:      7,
		IsOnline:        true,
		IsAvailable:     false,
		ActiveRequestID: &active,
	}

	applyOffline(&row)

	if row.IsOnline {
		t.Error("offline provider must not be online")
	}
	if row.IsAvailable {
		t.Error("offline provider must not be available")
	}
	if row.ActiveRequestID == nil || *row.ActiveRequestID != active {
		t.Error("going offline must not clear the active engagement")
	}
}

// A location ping implies presence: an idle provider who was offline comes
// back available, while an engaged one stays busy.
func TestApplyPositionRecomputesAvailability(t *testing.T) {
	idle := models.ProviderAvailability{ProviderID: 7}
	applyPosition(&idle, 1.5, 2.5)
	if !idle.IsOnline || !idle.IsAvailable {
		t.Errorf("idle provider after ping = %+v, want online and available", idle)
	}
	if idle.Lat != 1.5 || idle.Lng != 2.5 {
		t.Errorf("position not recorded: %+v", idle)
	}

	active := uint(42)
	engaged := models.ProviderAvailability{ProviderID: 7, ActiveRequestID: &active}
	applyPosition(&engaged, 1.5, 2.5)
	if !engaged.IsOnline || engaged.IsAvailable {
		t.Errorf("engaged provider after ping = %+v, want online but unavailable", engaged)
	}
}

func TestApplyOfflineIdleProvider(t *testing.T) {
	row := models.ProviderAvailability{ProviderID: 7, IsOnline: true, IsAvailable: true}

	applyOffline(&row)

	if row.IsOnline || row.IsAvailable {
		t.Errorf("idle provider should simply go dark, got %+v", row)
	}
}

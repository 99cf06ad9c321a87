package sweeper

import (
	"testing"
	"time"
)

func TestCutoffs(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{InstantTTL: 15 * time.Minute, ScheduledLeeway: 30 * time.Minute}

	instant, scheduled := Cutoffs(now, cfg)

	if want := now.Add(-15 * time.Minute); !instant.Equal(want) {
		t.Errorf("instant cutoff = %v, want %v", instant, want)
	}
	if want := now.Add(-30 * time.Minute); !scheduled.Equal(want) {
		t.Errorf("scheduled cutoff = %v, want %v", scheduled, want)
	}
}

// An instant request created just inside the TTL must survive the sweep; the
// boundary comparison is strict.
func TestCutoffsBoundary(t *testing.T) {
	now := time.Now()
	cfg := Config{InstantTTL: 15 * time.Minute, ScheduledLeeway: 30 * time.Minute}

	instant, _ := Cutoffs(now, cfg)

	createdAt := now.Add(-14 * time.Minute)
	if createdAt.Before(instant) {
		t.Error("request younger than the TTL must not fall before the cutoff")
	}
	stale := now.Add(-16 * time.Minute)
	if !stale.Before(instant) {
		t.Error("request older than the TTL must fall before the cutoff")
	}
}

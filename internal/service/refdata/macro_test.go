package refdata

import (
	"testing"
	"time"

	"mmlens/internal/domain/models"
)

func TestStaticMacroEventsWindow(t *testing.T) {
	// 2024-06-12 is a scheduled FOMC decision day.
	fomc := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)

	evs := staticMacroEvents(fomc, 1)
	if len(evs) != 1 {
		t.Fatalf("expected 1 event on the decision day, got %d", len(evs))
	}
	if evs[0].Type != models.EventMacro || evs[0].Description != "FOMC" {
		t.Fatalf("unexpected event: %+v", evs[0])
	}

	// One trading day before still qualifies.
	if evs := staticMacroEvents(fomc.AddDate(0, 0, -1), 1); len(evs) != 1 {
		t.Fatalf("expected event within 1 trading day, got %d", len(evs))
	}

	// A week out does not.
	if evs := staticMacroEvents(fomc.AddDate(0, 0, 7), 1); len(evs) != 0 {
		t.Fatalf("expected no events a week out, got %d", len(evs))
	}
}

package refdata

import (
	"time"

	"mmlens/internal/domain/models"
	"mmlens/pkg/util"
)

// Scheduled FOMC decision dates. The vendor calendar usually carries these,
// but a feed outage must not make the engine blind to a known macro day, so
// the published schedule is kept locally as a floor.
var fomcDates = []string{
	"2024-01-31", "2024-03-20", "2024-05-01", "2024-06-12",
	"2024-07-31", "2024-09-18", "2024-11-07", "2024-12-18",
	"2025-01-29", "2025-03-19", "2025-05-07", "2025-06-18",
	"2025-07-30", "2025-09-17", "2025-10-29", "2025-12-10",
	"2026-01-28", "2026-03-18", "2026-04-29", "2026-06-17",
	"2026-07-29", "2026-09-16", "2026-10-28", "2026-12-09",
}

// staticMacroEvents returns FOMC events from the local schedule that fall
// within the window around date. Duplicates with the vendor feed are harmless:
// macro qualification is idempotent.
func staticMacroEvents(date time.Time, windowDays int) []models.CalendarEvent {
	var out []models.CalendarEvent
	for _, s := range fomcDates {
		d, ok := util.ParseDate(s)
		if !ok {
			continue
		}
		if util.WithinTradingDays(date, d, windowDays) {
			out = append(out, models.CalendarEvent{
				Type:        models.EventMacro,
				Date:        d,
				Description: "FOMC",
			})
		}
	}
	return out
}

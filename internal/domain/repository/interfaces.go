package repository

import (
	"context"
	"time"

	"mmlens/internal/domain/models"
)

// FeatureStream delivers daily feature records pushed by an upstream
// collector (WebSocket feed).
type FeatureStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.FeatureRecord, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher emits diagnostic results and universe snapshots for downstream
// consumers (dashboards, storage mirrors).
type Publisher interface {
	PublishDiagnostic(ctx context.Context, d *models.DiagnosticOutput) error
	PublishSnapshot(ctx context.Context, s models.UniverseSnapshot) error
	Close() error
}

// FeatureStore is the per-(ticker, feature, date) interface to the persisted
// feature values. Reads are always single-instrument.
type FeatureStore interface {
	// GetSeries returns the ordered series for one (ticker, feature) pair in
	// [from, to]. Missing dates are simply absent; values may be NaN.
	GetSeries(ctx context.Context, ticker, feature string, from, to time.Time) (models.FeatureSeries, error)
	Store(ctx context.Context, r *models.FeatureRecord) error
	StoreBatch(ctx context.Context, rs []*models.FeatureRecord) error
	Health(ctx context.Context) error
}

// DiagnosticStore persists one DiagnosticOutput per (ticker, date).
type DiagnosticStore interface {
	Save(ctx context.Context, d *models.DiagnosticOutput) error
	Get(ctx context.Context, ticker string, date time.Time) (*models.DiagnosticOutput, error)
	ListByDate(ctx context.Context, date time.Time) ([]*models.DiagnosticOutput, error)
}

// UniverseStore persists the versioned per-day universe snapshot so FOCUS
// tracking survives restarts.
type UniverseStore interface {
	Save(ctx context.Context, s models.UniverseSnapshot) error
	Load(ctx context.Context, date time.Time) (models.UniverseSnapshot, bool, error)
	LoadLatest(ctx context.Context) (models.UniverseSnapshot, bool, error)
}

// ReferenceData supplies the external structural and event signals the
// universe manager consumes. All methods degrade to empty results on upstream
// failure; the cycle never aborts for missing reference data.
type ReferenceData interface {
	// TopConstituents returns the top-N holdings by weight for one ETF.
	TopConstituents(ctx context.Context, etf string, n int) ([]models.ETFConstituent, error)
	// EventsAround returns calendar events within the given trading-day window
	// of date.
	EventsAround(ctx context.Context, date time.Time, windowDays int) ([]models.CalendarEvent, error)
	// TopByOptionsVolume returns the n most active tickers by options volume.
	TopByOptionsVolume(ctx context.Context, date time.Time, n int) ([]string, error)
	// ScanUniverse returns the bounded, liquidity-filtered broad membership
	// used for the pass-2 stress scan.
	ScanUniverse(ctx context.Context, date time.Time) ([]string, error)
}

// Metrics is the domain metrics recorder.
type Metrics interface {
	RecordDiagnostic(regime, ticker string)
	RecordUnusualness(ticker string, score float64)
	RecordFocusSize(n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordMessageSent(backend, ticker string)
}

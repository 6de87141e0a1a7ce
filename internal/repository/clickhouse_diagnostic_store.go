package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mmlens/internal/domain/models"
	domrepo "mmlens/internal/domain/repository"
	pkgch "mmlens/pkg/clickhouse"
	applogger "mmlens/pkg/logger"
)

// CHDiagnosticStore persists one diagnostic record per (ticker, date). The
// full record is stored as JSON alongside the regime tag for cheap filtering.
type CHDiagnosticStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHDiagnosticStore(ch *pkgch.Client) *CHDiagnosticStore {
	return &CHDiagnosticStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHDiagnosticStore) SetLogger(l *applogger.Logger) { s.l = l }

var _ domrepo.DiagnosticStore = (*CHDiagnosticStore)(nil)

func (s *CHDiagnosticStore) Save(ctx context.Context, d *models.DiagnosticOutput) error {
	if d == nil {
		return fmt.Errorf("diagnostic is nil")
	}
	date, err := time.Parse("2006-01-02", d.Date)
	if err != nil {
		return fmt.Errorf("save diagnostic: %w", err)
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("save diagnostic: %w", err)
	}
	const q = `INSERT INTO mm_diagnostics (ticker, date, regime, payload) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, d.Ticker, date, string(d.RegimeResult.Regime), string(payload)); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse save_diagnostic error",
				applogger.String("ticker", d.Ticker),
				applogger.String("date", d.Date),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("save diagnostic: %w", err)
	}
	return nil
}

func (s *CHDiagnosticStore) Get(ctx context.Context, ticker string, date time.Time) (*models.DiagnosticOutput, error) {
	const q = `
        SELECT payload FROM mm_diagnostics
        WHERE ticker = ? AND date = ?
        ORDER BY created_at DESC
        LIMIT 1
    `
	var payload string
	err := s.db.QueryRowContext(ctx, q, ticker, date).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get diagnostic: %w", err)
	}
	var d models.DiagnosticOutput
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return nil, fmt.Errorf("decode diagnostic: %w", err)
	}
	return &d, nil
}

func (s *CHDiagnosticStore) ListByDate(ctx context.Context, date time.Time) ([]*models.DiagnosticOutput, error) {
	const q = `
        SELECT payload FROM mm_diagnostics
        WHERE date = ?
        ORDER BY ticker ASC
    `
	rows, err := s.db.QueryContext(ctx, q, date)
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	defer rows.Close()

	var out []*models.DiagnosticOutput
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		var d models.DiagnosticOutput
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("decode diagnostic: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

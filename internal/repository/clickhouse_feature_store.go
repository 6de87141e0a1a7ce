package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mmlens/internal/domain/models"
	domrepo "mmlens/internal/domain/repository"
	pkgch "mmlens/pkg/clickhouse"
	applogger "mmlens/pkg/logger"
)

// Schema statements for the feature and diagnostic tables. Applied via
// Client.InitSchema at startup.
var SchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS mm_features (
        ticker  LowCardinality(String),
        feature LowCardinality(String),
        date    Date,
        value   Float64,
        ingested_at DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(ingested_at)
    ORDER BY (ticker, feature, date)`,
	`CREATE TABLE IF NOT EXISTS mm_diagnostics (
        ticker  LowCardinality(String),
        date    Date,
        regime  LowCardinality(String),
        payload String,
        created_at DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(created_at)
    ORDER BY (ticker, date)`,
}

// CHFeatureStore implements FeatureStore backed by ClickHouse.
type CHFeatureStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHFeatureStore(ch *pkgch.Client) *CHFeatureStore {
	return &CHFeatureStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHFeatureStore) SetLogger(l *applogger.Logger) { s.l = l }

var _ domrepo.FeatureStore = (*CHFeatureStore)(nil)

func (s *CHFeatureStore) GetSeries(ctx context.Context, ticker, feature string, from, to time.Time) (models.FeatureSeries, error) {
	start := time.Now()
	const q = `
        SELECT date, value
        FROM mm_features
        WHERE ticker = ? AND feature = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `
	out := models.FeatureSeries{Ticker: ticker, Feature: feature}

	rows, err := s.db.QueryContext(ctx, q, ticker, feature, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_series query error",
				applogger.String("ticker", ticker),
				applogger.String("feature", feature),
				applogger.Error(err),
			)
		}
		return out, fmt.Errorf("get series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.FeaturePoint
		if err := rows.Scan(&p.Date, &p.Value); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse get_series scan error",
					applogger.String("ticker", ticker),
					applogger.String("feature", feature),
					applogger.Error(err),
				)
			}
			return out, fmt.Errorf("scan point: %w", err)
		}
		out.Points = append(out.Points, p)
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse get_series ok",
			applogger.String("ticker", ticker),
			applogger.String("feature", feature),
			applogger.Int("rows", len(out.Points)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHFeatureStore) Store(ctx context.Context, r *models.FeatureRecord) error {
	const q = `INSERT INTO mm_features (ticker, feature, date, value) VALUES (?, ?, ?, ?)`
	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return fmt.Errorf("store feature: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, q, r.Ticker, r.Feature, date, r.Value); err != nil {
		return fmt.Errorf("store feature: %w", err)
	}
	return nil
}

func (s *CHFeatureStore) StoreBatch(ctx context.Context, rs []*models.FeatureRecord) error {
	if len(rs) == 0 {
		return nil
	}
	// Multi-row VALUES insert to reduce round-trips, chunked.
	const chunkSize = 2000
	for start := 0; start < len(rs); start += chunkSize {
		end := start + chunkSize
		if end > len(rs) {
			end = len(rs)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*4)
		for _, r := range rs[start:end] {
			if r == nil || r.Ticker == "" || r.Feature == "" {
				continue
			}
			date, err := time.Parse("2006-01-02", r.Date)
			if err != nil {
				continue
			}
			values = append(values, "(?, ?, ?, ?)")
			args = append(args, r.Ticker, r.Feature, date, r.Value)
		}
		if len(values) == 0 {
			continue
		}
		q := "INSERT INTO mm_features (ticker, feature, date, value) VALUES " + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store batch: %w", err)
		}
	}
	return nil
}

func (s *CHFeatureStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

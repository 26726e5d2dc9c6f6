package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/couchcryptid/aq-export-service/internal/domain"
)

//go:embed sql/stream-window.sql
var streamWindowSQL string

//go:embed sql/insert-measurement.sql
var insertMeasurementSQL string

// Source streams measurements from a SQLite database. date_utc is stored as
// fixed-width domain.UTCLayout text so string comparison orders by time.
// It implements pipeline.RecordSource.
type Source struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSource creates a Source over an opened and migrated database.
func NewSource(db *sql.DB, logger *slog.Logger) *Source {
	return &Source{db: db, logger: logger}
}

// Stream selects the window's rows and scans them as they are pulled. Rows
// come back in storage order.
func (s *Source) Stream(ctx context.Context, window domain.DayWindow) iter.Seq2[domain.RawRecord, error] {
	return func(yield func(domain.RawRecord, error) bool) {
		rows, err := s.db.QueryContext(ctx, streamWindowSQL,
			window.From.Format(domain.UTCLayout),
			window.To.Format(domain.UTCLayout),
		)
		if err != nil {
			yield(domain.RawRecord{}, fmt.Errorf("query measurements: %w", err))
			return
		}
		defer func() {
			if err := rows.Close(); err != nil {
				s.logger.Error("close measurements rows", "day", window.Name(), "error", err)
			}
		}()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				yield(domain.RawRecord{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.RawRecord{}, fmt.Errorf("iterate measurements: %w", err))
		}
	}
}

func scanRecord(rows *sql.Rows) (domain.RawRecord, error) {
	var (
		rec         domain.RawRecord
		utc         string
		lat, lon    sql.NullFloat64
		attribution sql.NullString
	)
	if err := rows.Scan(
		&rec.Location, &rec.City, &rec.Country, &utc, &rec.Date.Local,
		&rec.Parameter, &rec.Value, &rec.Unit, &lat, &lon, &attribution,
	); err != nil {
		return domain.RawRecord{}, fmt.Errorf("scan measurement: %w", err)
	}

	t, err := time.Parse(domain.UTCLayout, utc)
	if err != nil {
		return domain.RawRecord{}, fmt.Errorf("parse date_utc %q: %w", utc, err)
	}
	rec.Date.UTC = t

	if lat.Valid && lon.Valid {
		rec.Coordinates = &domain.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	if attribution.Valid && attribution.String != "" {
		if err := json.Unmarshal([]byte(attribution.String), &rec.Attribution); err != nil {
			return domain.RawRecord{}, fmt.Errorf("parse attribution: %w", err)
		}
	}
	return rec, nil
}

// Insert writes records in a single transaction.
func Insert(ctx context.Context, db *sql.DB, records []domain.RawRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertMeasurementSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		var lat, lon sql.NullFloat64
		if rec.Coordinates != nil {
			lat = sql.NullFloat64{Float64: rec.Coordinates.Latitude, Valid: true}
			lon = sql.NullFloat64{Float64: rec.Coordinates.Longitude, Valid: true}
		}
		var attribution sql.NullString
		if len(rec.Attribution) > 0 {
			data, err := json.Marshal(rec.Attribution)
			if err != nil {
				return fmt.Errorf("marshal attribution for record %d: %w", i, err)
			}
			attribution = sql.NullString{String: string(data), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			rec.Location, rec.City, rec.Country,
			rec.Date.UTC.UTC().Format(domain.UTCLayout), rec.Date.Local,
			rec.Parameter, rec.Value, rec.Unit,
			lat, lon, attribution,
		); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	return tx.Commit()
}

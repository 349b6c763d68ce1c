package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mramzani/barghalarm/internal/entities"
)

const outageColumns = `outage_number, area_id, city_id, address_id, outage_date,
	outage_start_time, outage_end_time, created_at, updated_at`

// UpsertOutage stores rec keyed by its outage number. A new number is
// inserted; an existing one only ever has its end time extended. Both
// statements are atomic on their own, so concurrent upserts of the same
// number cannot lose an extension.
func (r *SQLRepository) UpsertOutage(ctx context.Context, rec entities.OutageRecord) (UpsertResult, error) {
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO outages(outage_number, area_id, city_id, address_id, outage_date,
			outage_start_time, outage_end_time, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(outage_number) DO NOTHING`),
		rec.OutageNumber,
		rec.AreaID,
		rec.CityID,
		rec.AddressID,
		nullString(rec.OutageDate),
		nullString(rec.StartTime),
		nullString(rec.EndTime),
		now,
		now,
	)
	if err != nil {
		return OutageUnchanged, fmt.Errorf("failed to insert outage %d: %w", rec.OutageNumber, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return OutageCreated, nil
	}

	// An unknown end never overrides a known one.
	if rec.EndTime == "" {
		return OutageUnchanged, nil
	}

	res, err = r.db.ExecContext(ctx, r.rebind(`
		UPDATE outages SET outage_end_time = ?, updated_at = ?
		WHERE outage_number = ? AND (outage_end_time IS NULL OR outage_end_time < ?)`),
		rec.EndTime,
		now,
		rec.OutageNumber,
		rec.EndTime,
	)
	if err != nil {
		return OutageUnchanged, fmt.Errorf("failed to merge outage %d: %w", rec.OutageNumber, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return OutageUnchanged, fmt.Errorf("failed to merge outage %d: %w", rec.OutageNumber, err)
	}
	if n > 0 {
		r.logger.Debug("extended outage end time",
			zap.Int64("outage_number", rec.OutageNumber),
			zap.String("end_time", rec.EndTime),
		)
		return OutageUpdated, nil
	}
	return OutageUnchanged, nil
}

// GetOutage returns the outage with the given number, or nil if there is none
func (r *SQLRepository) GetOutage(ctx context.Context, outageNumber int64) (*entities.OutageRecord, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+outageColumns+` FROM outages WHERE outage_number = ?`), outageNumber)
	rec, err := scanOutage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outage %d: %w", outageNumber, err)
	}
	return &rec, nil
}

// ListOutagesByAddress returns the outages of an address on a Gregorian date
func (r *SQLRepository) ListOutagesByAddress(ctx context.Context, addressID int64, date string) ([]entities.OutageRecord, error) {
	query := `SELECT ` + outageColumns + ` FROM outages
		WHERE address_id = ? AND outage_date = ?
		ORDER BY outage_start_time`
	return r.queryOutages(ctx, query, addressID, date)
}

// ListOutagesByDate returns all outages on a Gregorian date
func (r *SQLRepository) ListOutagesByDate(ctx context.Context, date string) ([]entities.OutageRecord, error) {
	query := `SELECT ` + outageColumns + ` FROM outages
		WHERE outage_date = ?
		ORDER BY outage_start_time, address_id`
	return r.queryOutages(ctx, query, date)
}

// DeleteOutagesBefore removes outages dated strictly before date and
// returns how many were deleted
func (r *SQLRepository) DeleteOutagesBefore(ctx context.Context, date string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM outages WHERE outage_date < ?`), date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete outages before %s: %w", date, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted outages: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) queryOutages(ctx context.Context, query string, args ...any) ([]entities.OutageRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outages: %w", err)
	}
	defer rows.Close()

	var result []entities.OutageRecord
	for rows.Next() {
		rec, err := scanOutage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOutage(s scanner) (entities.OutageRecord, error) {
	var (
		rec                       entities.OutageRecord
		areaID, cityID, addressID sql.NullInt64
		date, start, end          sql.NullString
	)
	if err := s.Scan(
		&rec.OutageNumber,
		&areaID,
		&cityID,
		&addressID,
		&date,
		&start,
		&end,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return rec, err
	}
	rec.AreaID = areaID.Int64
	rec.CityID = cityID.Int64
	rec.AddressID = addressID.Int64
	rec.OutageDate = date.String
	rec.StartTime = start.String
	rec.EndTime = end.String
	return rec, nil
}

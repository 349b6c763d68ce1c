package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mramzani/barghalarm/internal/entities"
)

// ListAreas returns the areas whose portal code is in codes, or every
// area when codes is empty. CityName is filled from the city's Persian name.
func (r *SQLRepository) ListAreas(ctx context.Context, codes []string) ([]entities.Area, error) {
	query := `
		SELECT a.id, a.city_id, COALESCE(a.name, ''), a.code, c.name_fa
		FROM areas a
		JOIN cities c ON c.id = a.city_id`
	args := make([]any, 0, len(codes))
	if len(codes) > 0 {
		query += ` WHERE a.code IN (` + placeholders(len(codes)) + `)`
		for _, code := range codes {
			args = append(args, code)
		}
	}
	query += ` ORDER BY a.id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query areas: %w", err)
	}
	defer rows.Close()

	var areas []entities.Area
	for rows.Next() {
		var a entities.Area
		if err := rows.Scan(&a.ID, &a.CityID, &a.Name, &a.Code, &a.CityName); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		areas = append(areas, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return areas, nil
}

// FindAddressIDByLabel looks up an address by its exact label within a city
func (r *SQLRepository) FindAddressIDByLabel(ctx context.Context, cityID int64, label string) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT id FROM addresses WHERE city_id = ? AND address = ? ORDER BY id LIMIT 1`), cityID, label).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find address: %w", err)
	}
	return id, true, nil
}

// ListAddressesByCity returns every address of a city ordered by id
func (r *SQLRepository) ListAddressesByCity(ctx context.Context, cityID int64) ([]entities.Address, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, city_id, address, COALESCE(code, '')
		FROM addresses WHERE city_id = ? ORDER BY id`), cityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	var addresses []entities.Address
	for rows.Next() {
		var a entities.Address
		if err := rows.Scan(&a.ID, &a.CityID, &a.Label, &a.Code); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return addresses, nil
}

// CreateAddress inserts an address label for a city. It reports false with
// the existing id when the label is already stored.
func (r *SQLRepository) CreateAddress(ctx context.Context, cityID int64, label string) (int64, bool, error) {
	return r.createAddress(ctx, r.db, cityID, label, "")
}

func (r *SQLRepository) createAddress(ctx context.Context, q querier, cityID int64, label, code string) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, r.rebind(`
		INSERT INTO addresses(city_id, address, code) VALUES(?, ?, ?)
		ON CONFLICT(city_id, address) DO NOTHING
		RETURNING id`), cityID, label, nullString(code)).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to create address: %w", err)
	}

	err = q.QueryRowContext(ctx, r.rebind(`SELECT id FROM addresses WHERE city_id = ? AND address = ?`), cityID, label).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load existing address: %w", err)
	}
	return id, false, nil
}

func (r *SQLRepository) upsertCity(ctx context.Context, q querier, c entities.City) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, r.rebind(`
		INSERT INTO cities(code, name_fa, name_en) VALUES(?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET name_fa = excluded.name_fa, name_en = excluded.name_en
		RETURNING id`), c.Code, c.NameFa, nullString(c.NameEn)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert city %s: %w", c.Code, err)
	}
	return id, nil
}

func (r *SQLRepository) upsertArea(ctx context.Context, q querier, a entities.Area) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, r.rebind(`
		INSERT INTO areas(city_id, code, name) VALUES(?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET city_id = excluded.city_id, name = excluded.name
		RETURNING id`), a.CityID, a.Code, nullString(a.Name)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert area %s: %w", a.Code, err)
	}
	return id, nil
}

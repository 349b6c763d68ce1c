// Package repository provides data access implementations
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mramzani/barghalarm/internal/entities"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// UpsertResult tells what an outage upsert did to storage
type UpsertResult int

const (
	OutageUnchanged UpsertResult = iota
	OutageCreated
	OutageUpdated
)

func (r UpsertResult) String() string {
	switch r {
	case OutageCreated:
		return "created"
	case OutageUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// OutageRepository defines the persistence operations for outage records
type OutageRepository interface {
	UpsertOutage(ctx context.Context, rec entities.OutageRecord) (UpsertResult, error)
	GetOutage(ctx context.Context, outageNumber int64) (*entities.OutageRecord, error)
	ListOutagesByAddress(ctx context.Context, addressID int64, date string) ([]entities.OutageRecord, error)
	ListOutagesByDate(ctx context.Context, date string) ([]entities.OutageRecord, error)
	DeleteOutagesBefore(ctx context.Context, date string) (int64, error)
}

// ReferenceRepository defines lookups and writes of cities, areas and addresses
type ReferenceRepository interface {
	ListAreas(ctx context.Context, codes []string) ([]entities.Area, error)
	FindAddressIDByLabel(ctx context.Context, cityID int64, label string) (int64, bool, error)
	ListAddressesByCity(ctx context.Context, cityID int64) ([]entities.Address, error)
	CreateAddress(ctx context.Context, cityID int64, label string) (int64, bool, error)
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLRepository implements OutageRepository and ReferenceRepository on
// SQLite or PostgreSQL
type SQLRepository struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS cities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name_fa TEXT NOT NULL,
		name_en TEXT
	);
	CREATE TABLE IF NOT EXISTS areas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		city_id INTEGER NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
		code TEXT NOT NULL UNIQUE,
		name TEXT
	);
	CREATE TABLE IF NOT EXISTS addresses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		city_id INTEGER NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
		address TEXT NOT NULL,
		code TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(city_id, address)
	);
	CREATE TABLE IF NOT EXISTS outages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		outage_number INTEGER NOT NULL UNIQUE,
		area_id INTEGER REFERENCES areas(id) ON DELETE SET NULL,
		city_id INTEGER REFERENCES cities(id) ON DELETE SET NULL,
		address_id INTEGER REFERENCES addresses(id) ON DELETE SET NULL,
		outage_date TEXT,
		outage_start_time TEXT,
		outage_end_time TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outages_area_city_address ON outages(area_id, city_id, address_id);
	CREATE INDEX IF NOT EXISTS idx_outages_date_time ON outages(outage_date, outage_start_time);`

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS cities (
		id BIGSERIAL PRIMARY KEY,
		code VARCHAR(32) NOT NULL UNIQUE,
		name_fa TEXT NOT NULL,
		name_en TEXT
	);
	CREATE TABLE IF NOT EXISTS areas (
		id BIGSERIAL PRIMARY KEY,
		city_id BIGINT NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
		code VARCHAR(32) NOT NULL UNIQUE,
		name TEXT
	);
	CREATE TABLE IF NOT EXISTS addresses (
		id BIGSERIAL PRIMARY KEY,
		city_id BIGINT NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
		address TEXT NOT NULL,
		code VARCHAR(64),
		created_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE(city_id, address)
	);
	CREATE TABLE IF NOT EXISTS outages (
		id BIGSERIAL PRIMARY KEY,
		outage_number BIGINT NOT NULL UNIQUE,
		area_id BIGINT REFERENCES areas(id) ON DELETE SET NULL,
		city_id BIGINT REFERENCES cities(id) ON DELETE SET NULL,
		address_id BIGINT REFERENCES addresses(id) ON DELETE SET NULL,
		outage_date VARCHAR(10),
		outage_start_time VARCHAR(8),
		outage_end_time VARCHAR(8),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outages_area_city_address ON outages(area_id, city_id, address_id);
	CREATE INDEX IF NOT EXISTS idx_outages_date_time ON outages(outage_date, outage_start_time);`

// NewSQLRepository opens the database and creates the schema if needed.
// An empty SQLite dsn stores the database under data/.
func NewSQLRepository(driver, dsn string, logger *zap.Logger) (*SQLRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var schema string
	switch driver {
	case "", DriverSQLite:
		driver = DriverSQLite
		schema = sqliteSchema
		if dsn == "" {
			dsn = filepath.Join("data", "barghalarm.db")
		}
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000&_foreign_keys=on"
		}
	case DriverPostgres:
		schema = postgresSchema
		if dsn == "" {
			return nil, fmt.Errorf("postgres requires a DSN")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	logger.Info("opening database", zap.String("driver", driver))
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite has a single writer; one connection keeps upserts serialized.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLRepository{db: db, driver: driver, logger: logger}, nil
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database is reachable
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (r *SQLRepository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

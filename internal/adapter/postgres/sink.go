// Package postgres mirrors earthquake events into a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	existsQuery = `SELECT EXISTS(SELECT 1 FROM earthquakes WHERE description = $1)`
	insertQuery = `INSERT INTO earthquakes
		(event_id, title, description, publication_date, date_time, scale, location, intensity, latitude, longitude, geohash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
)

// Sink writes events to the earthquakes table, skipping descriptions that
// are already present.
type Sink struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string, logger *slog.Logger) (*Sink, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an open database whose schema is already migrated.
func NewWithDB(db *sql.DB, logger *slog.Logger) *Sink {
	return &Sink{db: db, logger: logger}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *Sink) Close() error {
	return s.db.Close()
}

// Mirror inserts events (given newest first) oldest first, in one
// transaction. It returns how many rows were inserted; the rest were already
// present. On error nothing is committed.
func (s *Sink) Mirror(ctx context.Context, events []domain.EarthquakeEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	inserted := 0
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]

		var exists bool
		if err := tx.QueryRowContext(ctx, existsQuery, e.Description).Scan(&exists); err != nil {
			return 0, fmt.Errorf("check existing %s: %w", e.ID(), err)
		}
		if exists {
			s.logger.Debug("event already mirrored", "event_id", e.ID())
			continue
		}

		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs(e)...); err != nil {
			return 0, fmt.Errorf("insert %s: %w", e.ID(), err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func insertArgs(e domain.EarthquakeEvent) []any {
	var scale, lat, lon sql.NullFloat64
	if e.Magnitude != nil {
		scale = sql.NullFloat64{Float64: *e.Magnitude, Valid: true}
	}
	if e.Coordinate != nil {
		lat = sql.NullFloat64{Float64: e.Coordinate.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: e.Coordinate.Lon, Valid: true}
	}
	return []any{
		e.ID(),
		e.Title,
		e.Description,
		e.PubDate,
		nullString(e.DateTime),
		scale,
		nullString(e.Location),
		e.Intensity,
		lat,
		lon,
		nullString(e.Geohash()),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

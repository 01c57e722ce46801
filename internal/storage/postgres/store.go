// Package postgres provides a PostgreSQL implementation of storage.Store.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bissquit/incident-dispatch/internal/domain"
	"github.com/bissquit/incident-dispatch/internal/pkg/ctxlog"
	"github.com/bissquit/incident-dispatch/internal/pkg/metrics"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // migrate driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations to the database at databaseURL.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if srcErr, dbErr := migrator.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Store implements storage.Store using PostgreSQL.
type Store struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a store on an open pool. The store takes ownership of the pool.
func NewStore(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// LoadIncidents returns every row in id order.
func (s *Store) LoadIncidents(ctx context.Context) ([]domain.IncidentRecord, error) {
	logger := ctxlog.FromContextOr(ctx, s.logger)

	query := `
		SELECT id, type, priority, description, created_at, assigned_to, status
		FROM incidents
		ORDER BY id
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load incidents: %w", err)
	}
	defer rows.Close()

	records := make([]domain.IncidentRecord, 0)
	for rows.Next() {
		var rec domain.IncidentRecord
		err := rows.Scan(
			&rec.ID,
			&rec.Type,
			&rec.Priority,
			&rec.Description,
			&rec.CreatedAt,
			&rec.AssignedTo,
			&rec.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}

	logger.Info("incidents loaded", "count", len(records))
	return records, nil
}

// SaveIncidents replaces all rows with records in one transaction.
func (s *Store) SaveIncidents(ctx context.Context, records []domain.IncidentRecord) error {
	logger := ctxlog.FromContextOr(ctx, s.logger)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logger.Error("failed to rollback transaction", "error", err)
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM incidents`); err != nil {
		return fmt.Errorf("delete incidents: %w", err)
	}

	insertQuery := `
		INSERT INTO incidents (id, type, priority, description, created_at, assigned_to, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, rec := range records {
		_, err := tx.Exec(ctx, insertQuery,
			rec.ID,
			rec.Type,
			rec.Priority,
			rec.Description,
			rec.CreatedAt,
			rec.AssignedTo,
			rec.Status,
		)
		if err != nil {
			return fmt.Errorf("insert incident %d: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	metrics.RecordDBPoolMetrics(s.db)
	logger.Info("incidents saved", "count", len(records))
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

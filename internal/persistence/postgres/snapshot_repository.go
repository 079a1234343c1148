package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/tm-signals/signals_service/internal/infrastructure/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SnapshotRepository stores snapshot documents in the snapshots table
type SnapshotRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
	tracer trace.Tracer
}

// Connect opens a pooled connection to PostgreSQL
func Connect(ctx context.Context, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations
func Migrate(dsn string, logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Database migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sqlx.DB, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("snapshot-repository"),
	}
}

func (r *SnapshotRepository) Kind() string { return "postgres" }

// Read returns the stored document for name
func (r *SnapshotRepository) Read(ctx context.Context, name string) ([]byte, error) {
	ctx, span := r.tracer.Start(ctx, "snapshot_repo.read", trace.WithAttributes(
		attribute.String("snapshot", name),
	))
	defer span.End()

	var body []byte
	err := r.db.GetContext(ctx, &body, `SELECT body FROM snapshots WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotExist
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return body, nil
}

// Write upserts the full document for name
func (r *SnapshotRepository) Write(ctx context.Context, name string, data []byte) error {
	ctx, span := r.tracer.Start(ctx, "snapshot_repo.write", trace.WithAttributes(
		attribute.String("snapshot", name),
		attribute.Int("bytes", len(data)),
	))
	defer span.End()

	query := `
		INSERT INTO snapshots (name, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, name, data); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	r.logger.Debug("Snapshot written", zap.String("name", name), zap.Int("bytes", len(data)))
	return nil
}

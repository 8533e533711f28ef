package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"
)

//go:embed schemas/*.sql
var schemaFiles embed.FS

const (
	schemaVersionTable = "public.roomqa_schema_version"
	// schemaLockKey names the advisory lock that serializes schema upgrades
	// across instances. Postgres hashes it to the lock ID.
	schemaLockKey = "roomqa:schema"
	unlockTimeout = 5 * time.Second
)

// Options configures Open.
type Options struct {
	DatabaseURL string
	// MaxConns caps the pool. Zero keeps pgx's default.
	MaxConns int32
	// Tracer, if set, observes every query.
	Tracer pgx.QueryTracer
}

// Open connects to Postgres, brings the rooms and messages tables up to the
// embedded schema and returns a ready Store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	pool, err := connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := upgradeSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	var rooms, messages int64
	err = pool.QueryRow(ctx, `SELECT (SELECT count(*) FROM rooms), (SELECT count(*) FROM messages)`).Scan(&rooms, &messages)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to inspect room tables: %w", err)
	}
	slog.Info("Postgres store ready", "rooms", rooms, "messages", messages, "max_conns", pool.Config().MaxConns)

	return NewStore(pool), nil
}

func connect(ctx context.Context, opts Options) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}
	if opts.Tracer != nil {
		poolCfg.ConnConfig.Tracer = opts.Tracer
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}

// upgradeSchema applies pending migrations on one connection while holding
// the schema lock, so instances starting together upgrade exactly once.
func upgradeSchema(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for schema upgrade: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock(hashtext($1))", schemaLockKey); err != nil {
		return fmt.Errorf("failed to take schema lock: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock(hashtext($1))", schemaLockKey); err != nil {
			slog.Error("Failed to release schema lock", "error", err)
		}
	}()

	return migrateSchema(ctx, conn.Conn())
}

func migrateSchema(ctx context.Context, conn *pgx.Conn) error {
	files, err := fs.Sub(schemaFiles, "schemas")
	if err != nil {
		return fmt.Errorf("failed to read schema files: %w", err)
	}

	migrator, err := migrate.NewMigrator(ctx, conn, schemaVersionTable)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := migrator.LoadMigrations(files); err != nil {
		return fmt.Errorf("failed to load schema files: %w", err)
	}

	// A fresh database has no version table until the first Migrate.
	from, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		slog.Debug("No room schema version yet", "error", err)
		from = 0
	}
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to upgrade schema from version %d: %w", from, err)
	}

	if to := int32(len(migrator.Migrations)); to != from {
		slog.Info("Upgraded room schema", "from", from, "to", to)
	}
	return nil
}

package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migration is one numbered schema change with its rollback.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationStatus reports whether a migration has been applied.
type MigrationStatus struct {
	Migration
	AppliedAt *time.Time
}

// Migrations returns the schema changes shipped with the console.
func Migrations() ([]Migration, error) {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		return nil, err
	}
	return LoadMigrations(sub)
}

// LoadMigrations reads NNN_name.up.sql / NNN_name.down.sql pairs from the
// root of fsys, ordered by version. Every version needs an up file.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		file := entry.Name()
		base, direction, ok := cutDirection(file)
		if !ok {
			return nil, fmt.Errorf("migration %s: want NNN_name.up.sql or NNN_name.down.sql", file)
		}
		num, name, ok := strings.Cut(base, "_")
		version, err := strconv.Atoi(num)
		if !ok || err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: missing numeric version prefix", file)
		}

		contents, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}

		m, seen := byVersion[version]
		if !seen {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("migration version %d used by %q and %q", version, m.Name, name)
		}

		if direction == "up" {
			m.Up = string(contents)
		} else {
			m.Down = string(contents)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if strings.TrimSpace(m.Up) == "" {
			return nil, fmt.Errorf("migration %03d_%s has no up script", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func cutDirection(file string) (base, direction string, ok bool) {
	trimmed := strings.TrimSuffix(file, path.Ext(file))
	if base, ok := strings.CutSuffix(trimmed, ".up"); ok {
		return base, "up", true
	}
	if base, ok := strings.CutSuffix(trimmed, ".down"); ok {
		return base, "down", true
	}
	return "", "", false
}

// Migrator applies migrations to the client_state database. Each migration
// runs in its own transaction together with its bookkeeping row.
type Migrator struct {
	db         *DB
	migrations []Migration
	logger     *zap.Logger
}

func NewMigrator(db *DB, migrations []Migration, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, migrations: migrations, logger: logger}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version    INTEGER PRIMARY KEY,
            name       TEXT NOT NULL,
            applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
    `)
	return err
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.db.pool.Query(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var (
			version int
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, err
		}
		out[version] = at
	}
	return out, rows.Err()
}

// Up applies every pending migration in version order and reports how many
// it ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	done, err := m.applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("list applied migrations: %w", err)
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := done[mig.Version]; ok {
			continue
		}

		start := time.Now()
		err := m.inTx(ctx, mig.Up, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
		if err != nil {
			return count, fmt.Errorf("apply %03d_%s: %w", mig.Version, mig.Name, err)
		}
		count++
		m.logger.Info("migration applied",
			zap.Int("version", mig.Version),
			zap.String("name", mig.Name),
			zap.Duration("took", time.Since(start).Round(time.Millisecond)),
		)
	}
	return count, nil
}

// Down rolls back the newest steps applied migrations.
func (m *Migrator) Down(ctx context.Context, steps int) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	done, err := m.applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("list applied migrations: %w", err)
	}

	count := 0
	for i := len(m.migrations) - 1; i >= 0 && count < steps; i-- {
		mig := m.migrations[i]
		if _, ok := done[mig.Version]; !ok {
			continue
		}
		if strings.TrimSpace(mig.Down) == "" {
			return count, fmt.Errorf("migration %03d_%s cannot be rolled back", mig.Version, mig.Name)
		}

		if err := m.inTx(ctx, mig.Down, "DELETE FROM schema_migrations WHERE version = $1", mig.Version); err != nil {
			return count, fmt.Errorf("roll back %03d_%s: %w", mig.Version, mig.Name, err)
		}
		count++
		m.logger.Info("migration rolled back", zap.Int("version", mig.Version), zap.String("name", mig.Name))
	}
	return count, nil
}

// Status lists every known migration with its applied time, if any.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}

	out := make([]MigrationStatus, len(m.migrations))
	for i, mig := range m.migrations {
		out[i] = MigrationStatus{Migration: mig}
		if at, ok := done[mig.Version]; ok {
			out[i].AppliedAt = &at
		}
	}
	return out, nil
}

// inTx runs a migration script and its bookkeeping statement atomically.
func (m *Migrator) inTx(ctx context.Context, script, record string, args ...any) error {
	tx, err := m.db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			m.logger.Warn("migration rollback failed", zap.Error(rbErr))
		}
	}()

	// simple protocol lets one script carry several statements
	if _, err := tx.Exec(ctx, script, pgx.QueryExecModeSimpleProtocol); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, record, args...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

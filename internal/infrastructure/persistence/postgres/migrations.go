package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gpadva81/crystal-edu-track-now/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one versioned schema change.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations and records them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
	log        *logger.Logger
}

// NewMigrator creates a migrator over the embedded migrations.
func NewMigrator(conn *Connection, log *logger.Logger) *Migrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Migrator{
		conn:       conn,
		migrations: Migrations(),
		tableName:  "schema_migrations",
		log:        log.With(logger.Component("migrator")),
	}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, m.tableName))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var (
			version   int
			appliedAt time.Time
		)
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		out[version] = appliedAt
	}
	return out, rows.Err()
}

// Migrate applies all pending migrations in version order, each in its own
// transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		m.log.Info("migration applied", logger.Int("version", mig.Version), logger.String("name", mig.Name))
	}
	return nil
}

// Rollback reverts the newest applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		last = max(last, v)
	}
	if last == 0 {
		return nil
	}

	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			mig = &m.migrations[i]
			break
		}
	}
	if mig == nil || mig.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	err = m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
	if err == nil {
		m.log.Info("migration rolled back", logger.Int("version", last), logger.String("name", mig.Name))
	}
	return err
}

// Status lists every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if at, ok := applied[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// Migrations returns the embedded migrations in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_homework", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_achievements", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_learning_profiles", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_tutor_conversations", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CLASSES AND ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS classes (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL,
    name TEXT NOT NULL,
    subject TEXT NOT NULL DEFAULT 'General',
    teacher_name TEXT NOT NULL DEFAULT '',
    teacher_email TEXT NOT NULL DEFAULT '',
    color TEXT NOT NULL DEFAULT 'blue',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_classes_student_name ON classes(student_id, lower(name));

CREATE TABLE IF NOT EXISTS assignments (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL,
    class_id UUID REFERENCES classes(id) ON DELETE SET NULL,
    title TEXT NOT NULL,
    subject TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    due_date DATE,
    status VARCHAR(20) NOT NULL DEFAULT 'todo',
    priority VARCHAR(10) NOT NULL DEFAULT 'medium',
    source VARCHAR(40) NOT NULL DEFAULT 'manual',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ,

    CONSTRAINT valid_status CHECK (status IN ('todo', 'in_progress', 'completed')),
    CONSTRAINT valid_priority CHECK (priority IN ('low', 'medium', 'high'))
);

CREATE INDEX IF NOT EXISTS idx_assignments_student ON assignments(student_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_assignments_student_status ON assignments(student_id, status);
`

const migration001Down = `
DROP TABLE IF EXISTS assignments;
DROP TABLE IF EXISTS classes;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ACHIEVEMENTS
// One row per (student, badge). Unlocking is a conditional upsert on that key.
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS achievements (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL,
    name TEXT NOT NULL,
    unlocked BOOLEAN NOT NULL DEFAULT FALSE,
    unlocked_at TIMESTAMPTZ,
    reward TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT achievements_student_name UNIQUE (student_id, name),
    CONSTRAINT unlocked_has_time CHECK (NOT unlocked OR unlocked_at IS NOT NULL)
);
`

const migration002Down = `
DROP TABLE IF EXISTS achievements;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: LEARNING PROFILES
// version guards compare-and-swap saves; profile_merge_turns makes a turn's
// merge idempotent.
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS learning_profiles (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL UNIQUE,
    learning_style_notes TEXT NOT NULL DEFAULT '',
    strengths TEXT[] NOT NULL DEFAULT '{}',
    areas_for_growth TEXT[] NOT NULL DEFAULT '{}',
    misconceptions TEXT[] NOT NULL DEFAULT '{}',
    preferred_explanation_style TEXT NOT NULL DEFAULT '',
    motivation_factors TEXT NOT NULL DEFAULT '',
    tutor_handoff_notes TEXT NOT NULL DEFAULT '',
    version BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS profile_merge_turns (
    student_id UUID NOT NULL,
    turn_id TEXT NOT NULL,
    merged_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (student_id, turn_id)
);
`

const migration003Down = `
DROP TABLE IF EXISTS profile_merge_turns;
DROP TABLE IF EXISTS learning_profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: TUTOR CONVERSATIONS
// Messages are a JSONB array appended with ||.
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS tutor_conversations (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL,
    assignment_id UUID,
    title TEXT NOT NULL,
    subject TEXT NOT NULL DEFAULT '',
    persona_id TEXT NOT NULL,
    style TEXT NOT NULL,
    model TEXT NOT NULL,
    messages JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tutor_conversations_student ON tutor_conversations(student_id, created_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS tutor_conversations;
`

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults and applies the schema.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db}, nil
}

// migrate applies the schema. Uniqueness of email and phone_number lives here,
// not in application code: the pre-insert check in registration is only a
// friendlier error path, the constraints are what make the race safe.
func migrate(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id       UUID PRIMARY KEY,
		full_name     TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		phone_number  TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		vehicle_number TEXT,
		child1_name   TEXT,
		child2_name   TEXT,
		child3_name   TEXT,
		child4_name   TEXT,
		staff_id      TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS cameras (
		camera_id  TEXT PRIMARY KEY,
		location   TEXT NOT NULL DEFAULT '',
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS plate_logs (
		id             UUID PRIMARY KEY,
		detected_plate TEXT NOT NULL,
		detected_at    TIMESTAMPTZ NOT NULL,
		camera_id      TEXT NOT NULL DEFAULT '',
		snapshot_url   TEXT NOT NULL DEFAULT '',
		confidence     DOUBLE PRECISION,
		status         TEXT NOT NULL DEFAULT 'recorded',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_plate_logs_plate ON plate_logs(detected_plate);
	CREATE INDEX IF NOT EXISTS idx_plate_logs_time  ON plate_logs(detected_at);
	CREATE INDEX IF NOT EXISTS idx_users_vehicle    ON users(vehicle_number);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

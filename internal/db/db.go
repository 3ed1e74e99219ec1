package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps pgxpool.Pool for database operations
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates a new DB connection pool and ensures the schema exists
func NewDB(ctx context.Context, url string) (*DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	d := &DB{pool: pool}
	if err := d.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the connection pool
func (d *DB) Close() {
	d.pool.Close()
}

// Pool returns the underlying pgxpool.Pool
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

func (d *DB) initSchema(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	start_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	end_date TIMESTAMPTZ,
	timelapse_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	timelapse_interval INTEGER NOT NULL DEFAULT 300,
	timelapse_last_capture TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sensor_logs (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT REFERENCES projects(id),
	captured_at TIMESTAMPTZ NOT NULL,
	temperature DOUBLE PRECISION,
	humidity DOUBLE PRECISION,
	pressure DOUBLE PRECISION,
	gas_resistance DOUBLE PRECISION,
	synced BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_sensor_logs_captured_at ON sensor_logs(captured_at);
CREATE INDEX IF NOT EXISTS idx_sensor_logs_project ON sensor_logs(project_id);

CREATE TABLE IF NOT EXISTS device_settings (
	device_name TEXT PRIMARY KEY,
	mode TEXT NOT NULL DEFAULT 'schedule',
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	schedule JSONB NOT NULL DEFAULT '[]',
	thresholds JSONB NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS device_states (
	device_name TEXT PRIMARY KEY,
	state INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS alert_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	temp_min DOUBLE PRECISION,
	temp_max DOUBLE PRECISION,
	humidity_min DOUBLE PRECISION,
	humidity_max DOUBLE PRECISION,
	notification_interval INTEGER NOT NULL DEFAULT 300,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS timelapse_images (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT REFERENCES projects(id),
	captured_at TIMESTAMPTZ NOT NULL,
	filepath TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_timelapse_images_project ON timelapse_images(project_id);

CREATE TABLE IF NOT EXISTS diary_entries (
	id BIGSERIAL PRIMARY KEY,
	project_id BIGINT NOT NULL REFERENCES projects(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	photos JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS system_settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

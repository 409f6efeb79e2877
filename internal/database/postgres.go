package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adamanr/unit_service/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS units (
	unit_code        TEXT PRIMARY KEY,
	parent_unit_code TEXT,
	unit_name        TEXT NOT NULL,
	full_name        TEXT NOT NULL,
	region           TEXT NOT NULL,
	level            INTEGER NOT NULL DEFAULT 1,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
	username   TEXT PRIMARY KEY,
	password   TEXT NOT NULL,
	role       TEXT NOT NULL,
	unit_code  TEXT NOT NULL,
	region     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// NewConnect opens a connection pool and applies the schema.
func NewConnect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	var url = fmt.Sprintf("postgres://%s:%s@%s/%s",
		cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Database)

	conn, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("Error connecting to DB", slog.String("error", err.Error()))
		return nil, err
	}

	if _, err = conn.Exec(ctx, schema); err != nil {
		logger.Error("Error applying schema", slog.String("error", err.Error()))
		conn.Close()
		return nil, err
	}

	logger.Info("Connected to DB successfully")
	return conn, nil
}

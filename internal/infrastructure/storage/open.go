package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"DataPaperIndex/internal/config"
	"DataPaperIndex/internal/ports"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverFile     = "file"
)

// Open builds the configured catalog backend. The returned close function
// releases the database pool and is a no-op for the file backend.
func Open(ctx context.Context, cfg config.DatabaseConfig) (ports.Catalog, func() error, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", DriverFile:
		return NewFileCatalog(cfg.Path), func() error { return nil }, nil
	case DriverPostgres, "postgresql":
		return openSQL(ctx, DriverPostgres, cfg.DSN, Postgres)
	case DriverMySQL:
		return openSQL(ctx, DriverMySQL, cfg.DSN, MySQL)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openSQL(ctx context.Context, driver, dsn string, dialect Dialect) (ports.Catalog, func() error, error) {
	if dsn == "" {
		return nil, nil, fmt.Errorf("database dsn is required for driver %s", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := EnsureSchema(ctx, db, dialect); err != nil {
		db.Close()
		return nil, nil, err
	}
	return NewSQLCatalog(db, dialect), db.Close, nil
}

var schema = map[string][]string{
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS raw_papers (
			id SERIAL PRIMARY KEY,
			doi TEXT UNIQUE,
			title TEXT, abstract TEXT, publish_date TEXT, url TEXT,
			authors TEXT, tags TEXT, journal TEXT, abstract_source TEXT,
			created_at TEXT, updated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS processed_papers (
			id SERIAL PRIMARY KEY,
			doi TEXT UNIQUE,
			title TEXT, abstract TEXT, publish_date TEXT, url TEXT,
			authors TEXT, tags TEXT, journal TEXT,
			title_cn TEXT, interpretation_cn TEXT, subject TEXT,
			created_at TEXT, updated_at TEXT
		)`,
	},
	DriverMySQL: {
		`CREATE TABLE IF NOT EXISTS raw_papers (
			id INT AUTO_INCREMENT PRIMARY KEY,
			doi VARCHAR(255) UNIQUE,
			title TEXT, abstract TEXT, publish_date VARCHAR(32), url TEXT,
			authors TEXT, tags TEXT, journal VARCHAR(255), abstract_source VARCHAR(16),
			created_at VARCHAR(32), updated_at VARCHAR(32)
		) DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS processed_papers (
			id INT AUTO_INCREMENT PRIMARY KEY,
			doi VARCHAR(255) UNIQUE,
			title TEXT, abstract TEXT, publish_date VARCHAR(32), url TEXT,
			authors TEXT, tags TEXT, journal VARCHAR(255),
			title_cn TEXT, interpretation_cn TEXT, subject VARCHAR(64),
			created_at VARCHAR(32), updated_at VARCHAR(32)
		) DEFAULT CHARSET=utf8mb4`,
	},
}

// EnsureSchema creates the raw and processed tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	for _, stmt := range schema[dialect.Name] {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Open connects to the database at path and applies the schema.
// libsql:// and wss:// URLs go to a remote libsql server; anything else is a local SQLite file.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	driver, dsn := resolveDSN(path)

	instance, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := instance.PingContext(ctx); err != nil {
		instance.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug().Str("driver", driver).Msg("database connection successful")

	if err := migrate(ctx, instance); err != nil {
		instance.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info().Msg("migrations completed successfully")

	return instance, nil
}

func resolveDSN(path string) (driver, dsn string) {
	if isRemote(path) {
		return "libsql", path
	}
	return "sqlite", formatDBPath(path)
}

func isRemote(path string) bool {
	for _, scheme := range []string{"libsql://", "wss://", "ws://", "https://", "http://"} {
		if strings.HasPrefix(path, scheme) {
			return true
		}
	}
	return false
}

func formatDBPath(path string) string {
	if path == "" {
		path = "shortly.db"
	}
	path = strings.TrimPrefix(path, "file:")

	// See: https://pkg.go.dev/modernc.org/sqlite#pkg-overview
	params := url.Values{}
	params.Set("mode", "rwc")
	params.Set("_txlock", "immediate")
	params.Set("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "busy_timeout(5000)")

	return "file:" + path + "?" + params.Encode()
}

func migrate(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS links (
		id TEXT PRIMARY KEY,
		code TEXT UNIQUE NOT NULL,
		url TEXT NOT NULL,
		click_count INTEGER NOT NULL DEFAULT 0 CHECK (click_count >= 0),
		last_clicked TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_links_created_at ON links(created_at);
	`

	_, err := db.ExecContext(ctx, schema)
	return err
}

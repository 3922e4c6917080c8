package persistent

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/Borislavv/go-ash-store/config"
	"github.com/Borislavv/go-ash-store/model"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS cache (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	key       TEXT    NOT NULL UNIQUE,
	value     BLOB    NOT NULL,
	metadata  BLOB    NOT NULL,
	delete_at INTEGER NOT NULL,
	cached_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS cache_key_delete_at ON cache(key, delete_at);
CREATE INDEX IF NOT EXISTS cache_delete_at ON cache(delete_at);
`

const (
	selectLive    = `SELECT value, metadata FROM cache WHERE key = ? AND delete_at > ?`
	selectHasLive = `SELECT 1 FROM cache WHERE key = ? AND delete_at > ?`
	updateByKey   = `UPDATE cache SET value = ?, metadata = ?, delete_at = ?, cached_at = ? WHERE key = ?`
	insertRow     = `INSERT INTO cache (key, value, metadata, delete_at, cached_at) VALUES (?, ?, ?, ?, ?)`
	deleteByKey   = `DELETE FROM cache WHERE key = ?`
	deleteAll     = `DELETE FROM cache`
	deleteExpired = `DELETE FROM cache WHERE delete_at <= ?`
	countRows     = `SELECT COUNT(*) FROM cache`
	statRows      = `SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0) FROM cache`

	pruneOldest = `DELETE FROM cache WHERE id IN (SELECT id FROM cache ORDER BY cached_at ASC, id ASC LIMIT ?)`
	pruneNewest = `DELETE FROM cache WHERE id IN (SELECT id FROM cache ORDER BY cached_at DESC, id DESC LIMIT ?)`
)

// dsn applies the tuning pragmas on every connection the pool opens.
func dsn(cfg *config.Persistent) string {
	return fmt.Sprintf(
		"%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=temp_store(MEMORY)",
		cfg.Filename, cfg.Timeout.Milliseconds(),
	)
}

// open returns a single-connection pool with the schema in place.
// A private in-memory database lives exactly as long as that one connection.
func open(ctx context.Context, cfg *config.Persistent) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn(cfg))
	if err != nil {
		return nil, model.Database(err, "persistent: open "+cfg.Filename)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, model.Database(err, "persistent: create schema")
	}
	if _, err = db.ExecContext(ctx, `PRAGMA optimize`); err != nil {
		_ = db.Close()
		return nil, model.Database(err, "persistent: optimize")
	}
	return db, nil
}

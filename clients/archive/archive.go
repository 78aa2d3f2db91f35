package archive

import (
	"botconsole/clients/dashboardapi"
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS bot_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		level TEXT NOT NULL,
		category TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		received_at INTEGER NOT NULL,
		UNIQUE (ts, level, category, message)
	);
	CREATE INDEX IF NOT EXISTS bot_log_ts ON bot_log (ts DESC);
`

// Archive journals received bot log entries to SQLite. Entries re-delivered
// by a reconnect snapshot are ignored.
type Archive struct {
	logger *zap.Logger
	db     *sql.DB
}

// Open opens (creating if needed) the journal at path.
func Open(logger *zap.Logger, path string) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open log archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping log archive: %w", err)
	}

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		logger.Warn("failed to set WAL mode", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		logger.Warn("failed to set synchronous mode", zap.Error(err))
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create log archive schema: %w", err)
	}

	logger.Info("log archive opened", zap.String("path", path))
	return &Archive{logger: logger, db: db}, nil
}

// Append stores entries, returning how many were new.
func (a *Archive) Append(ctx context.Context, entries ...dashboardapi.LogEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO bot_log (ts, level, category, message, details, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare archive insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	inserted := 0
	for _, e := range entries {
		res, err := stmt.ExecContext(ctx, e.Timestamp.UnixNano(), e.Level, e.Category, e.Message, e.Details, now)
		if err != nil {
			return 0, fmt.Errorf("insert archive entry: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit archive tx: %w", err)
	}
	return inserted, nil
}

// Recent returns up to limit entries, newest first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]dashboardapi.LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT ts, level, category, message, details
		FROM bot_log
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var entries []dashboardapi.LogEntry
	for rows.Next() {
		var (
			ts                               int64
			level, category, message, detail string
		)
		if err := rows.Scan(&ts, &level, &category, &message, &detail); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		entries = append(entries, dashboardapi.NewLogEntry(time.Unix(0, ts), level, category, message, detail))
	}
	return entries, rows.Err()
}

// Count returns the number of archived entries.
func (a *Archive) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bot_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("count archive: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

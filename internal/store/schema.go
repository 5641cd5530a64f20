package store

import (
	"database/sql"
	"fmt"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS stocks (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS bars (
    code TEXT NOT NULL,
    date TEXT NOT NULL,
    open REAL NOT NULL,
    high REAL NOT NULL,
    low REAL NOT NULL,
    close REAL NOT NULL,
    volume REAL NOT NULL,
    PRIMARY KEY (code, date)
);

CREATE TABLE IF NOT EXISTS growth_months (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL,
    month TEXT NOT NULL,
    ratio REAL NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS price_ranges (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL,
    month TEXT NOT NULL,
    high REAL NOT NULL,
    low REAL NOT NULL,
    high_date TEXT NOT NULL,
    low_date TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS holdings (
    id INTEGER PRIMARY KEY,
    run INTEGER NOT NULL,
    strategy_type INTEGER NOT NULL,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    buy_date TEXT NOT NULL,
    buy_price REAL NOT NULL,
    amount INTEGER NOT NULL,
    sell_date TEXT,
    sell_price REAL,
    profit REAL,
    profit_rate REAL,
    fee REAL,
    reason TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_holdings_run ON holdings(run);

CREATE TABLE IF NOT EXISTS recommendations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL,
    strategy_type INTEGER NOT NULL,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    price REAL NOT NULL,
    reason TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_recommendations_date_type
    ON recommendations(date, strategy_type);

CREATE TABLE IF NOT EXISTS backtest_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run INTEGER NOT NULL,
    strategy_type INTEGER NOT NULL,
    start_balance REAL NOT NULL,
    final_cash REAL NOT NULL,
    total_profit REAL NOT NULL,
    max_profit REAL NOT NULL,
    min_profit REAL NOT NULL,
    transactions INTEGER NOT NULL,
    max_concurrent INTEGER NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    cookie TEXT NOT NULL DEFAULT '',
    token TEXT NOT NULL DEFAULT '',
    times INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// ApplyMigrations bootstraps the schema; keep lightweight for fast startup.
func ApplyMigrations(s *Store) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("store is not initialized")
	}
	if _, err := s.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	// Lightweight, idempotent migrations for older DB files.
	if err := ensureColumn(s.DB, "holdings", "reason", "TEXT"); err != nil {
		return err
	}
	if err := ensureColumn(s.DB, "holdings", "profit_rate", "REAL"); err != nil {
		return err
	}
	if err := ensureColumn(s.DB, "holdings", "fee", "REAL"); err != nil {
		return err
	}
	if err := ensureColumn(s.DB, "recommendations", "reason", "TEXT"); err != nil {
		return err
	}
	if err := ensureColumn(s.DB, "meta", "times", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}

	// The singleton meta row the credential and run-counter queries rely on.
	if _, err := s.DB.Exec(`INSERT OR IGNORE INTO meta (id, cookie, token, times) VALUES (1, '', '', 0)`); err != nil {
		return fmt.Errorf("seed meta row: %w", err)
	}

	return nil
}

// ensureColumn adds a column if it does not already exist.
func ensureColumn(db *sql.DB, table, column, definition string) error {
	exists, err := columnExists(db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	if _, err := db.Exec(alter); err != nil {
		return fmt.Errorf("alter table %s add column %s: %w", table, column, err)
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false, fmt.Errorf("pragma table_info(%s): %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

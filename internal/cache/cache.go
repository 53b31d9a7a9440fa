// Package cache provides the SQLite-backed build cache.
//
// It stores per-file scan results keyed by content checksum so unchanged
// files are not re-scanned across builds. The cache is strictly an
// accelerator: any miss, corrupt row, or query failure degrades to a rescan,
// never to a build failure.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/raido/internal/graph"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS modules (
	path       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL,
	edges      TEXT NOT NULL DEFAULT '[]',
	contexts   TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with build-cache operations.
type DB struct {
	conn *sql.DB
}

// Verify *DB satisfies the graph's cache contract at compile time.
var _ graph.ScanCache = (*DB)(nil)

// Open opens (or creates) the cache database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get returns the cached scan for path if its stored checksum matches sum.
func (db *DB) Get(path, sum string) (graph.CachedScan, bool) {
	var storedSum, edgesJSON, contextsJSON string
	err := db.conn.QueryRow(
		`SELECT checksum, edges, contexts FROM modules WHERE path = ?`, path,
	).Scan(&storedSum, &edgesJSON, &contextsJSON)
	if err != nil || storedSum != sum {
		return graph.CachedScan{}, false
	}

	var cs graph.CachedScan
	if err := json.Unmarshal([]byte(edgesJSON), &cs.Edges); err != nil {
		return graph.CachedScan{}, false
	}
	if err := json.Unmarshal([]byte(contextsJSON), &cs.Contexts); err != nil {
		return graph.CachedScan{}, false
	}
	return cs, true
}

// Put inserts or replaces the scan result for one file revision.
func (db *DB) Put(path, sum string, cs graph.CachedScan) error {
	edgesJSON, err := json.Marshal(cs.Edges)
	if err != nil {
		return fmt.Errorf("cache: marshal edges: %w", err)
	}
	contextsJSON, err := json.Marshal(cs.Contexts)
	if err != nil {
		return fmt.Errorf("cache: marshal contexts: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO modules (path, checksum, edges, contexts, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			edges      = excluded.edges,
			contexts   = excluded.contexts,
			updated_at = excluded.updated_at
	`, path, sum, string(edgesJSON), string(contextsJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cache: upsert %s: %w", path, err)
	}
	return nil
}

// Prune deletes rows for modules no longer present in the graph.
func (db *DB) Prune(keep map[string]struct{}) error {
	rows, err := db.conn.Query(`SELECT path FROM modules`)
	if err != nil {
		return fmt.Errorf("cache: list paths: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return fmt.Errorf("cache: scan path: %w", err)
		}
		if _, ok := keep[p]; !ok {
			stale = append(stale, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("cache: iterate paths: %w", err)
	}

	for _, p := range stale {
		if _, err := db.conn.Exec(`DELETE FROM modules WHERE path = ?`, p); err != nil {
			return fmt.Errorf("cache: delete %s: %w", p, err)
		}
	}
	return nil
}

// Size returns the number of cached module rows.
func (db *DB) Size() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM modules`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}

// Package cache is the persistent entity cache layered in front of the dump
// file: a durable key-value table of validated raw entity JSON keyed by QID.
// One cache exists per dump file, at a path derived from the dump's path.
package cache

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotCached means a QID has no cache entry.
var ErrNotCached = errors.New("cache: entity not cached")

// Cache stores raw entity JSON. Get, Put, Has, and Partition are safe for
// concurrent use; Put is idempotent (first write wins, duplicate writes of
// the same value are harmless), so extraction workers may insert without
// coordination.
type Cache struct {
	db  *sql.DB
	get *sql.Stmt
	put *sql.Stmt
	has *sql.Stmt
}

// Open opens or creates the cache at path.
func Open(path string) (*Cache, error) {
	// Pragmas go in the DSN so they apply to every pooled connection. WAL
	// keeps concurrent extraction workers from serializing on reads; the
	// busy timeout makes a second writer wait out SQLITE_BUSY instead of
	// failing, which Put's concurrency contract depends on.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		qid  BLOB PRIMARY KEY,
		json TEXT NOT NULL
	) WITHOUT ROWID;
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	c := &Cache{db: db}
	if c.get, err = db.Prepare("SELECT json FROM entities WHERE qid = ?"); err == nil {
		if c.put, err = db.Prepare("INSERT OR IGNORE INTO entities (qid, json) VALUES (?, ?)"); err == nil {
			c.has, err = db.Prepare("SELECT 1 FROM entities WHERE qid = ?")
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare cache statements: %w", err)
	}
	return c, nil
}

// Key is the canonical cache key for a QID: 8 bytes, big-endian.
func Key(qid uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, qid)
	return k
}

// Get returns the raw entity JSON cached for qid, or ErrNotCached.
func (c *Cache) Get(qid uint64) ([]byte, error) {
	var raw []byte
	err := c.get.QueryRow(Key(qid)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("Q%d: %w", qid, ErrNotCached)
	}
	if err != nil {
		return nil, fmt.Errorf("read cache for Q%d: %w", qid, err)
	}
	return raw, nil
}

// Put inserts the raw entity JSON for qid. Callers must validate the JSON
// and its embedded identifier before inserting; the cache never re-checks,
// and a key's value is never updated after first write.
func (c *Cache) Put(qid uint64, raw []byte) error {
	if _, err := c.put.Exec(Key(qid), raw); err != nil {
		return fmt.Errorf("write cache for Q%d: %w", qid, err)
	}
	return nil
}

// Has reports whether qid is cached.
func (c *Cache) Has(qid uint64) (bool, error) {
	var one int
	err := c.has.QueryRow(Key(qid)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe cache for Q%d: %w", qid, err)
	}
	return true, nil
}

// Partition splits qids by cache membership, preserving order within each
// half.
func (c *Cache) Partition(qids []uint64) (cached, uncached []uint64, err error) {
	for _, q := range qids {
		ok, err := c.Has(q)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			cached = append(cached, q)
		} else {
			uncached = append(uncached, q)
		}
	}
	return cached, uncached, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	_ = c.get.Close()
	_ = c.put.Close()
	_ = c.has.Close()
	return c.db.Close()
}

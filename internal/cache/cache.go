package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// Cache is the local pin catalog. Pins keep the position of their first
// insertion, which is the order pages are served in.
type Cache struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

func Open(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	c := &Cache{writeDB: writeDB}
	if err := c.init(); err != nil {
		c.Close()
		return nil, err
	}

	// Opened after init so the read-only handle never races schema creation.
	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}
	c.readDB = readDB
	return c, nil
}

func (c *Cache) init() error {
	_, err := c.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS pins (
			position   INTEGER PRIMARY KEY AUTOINCREMENT,
			key        TEXT NOT NULL UNIQUE,
			source     TEXT NOT NULL DEFAULT '',
			title      TEXT NOT NULL DEFAULT '',
			image      TEXT NOT NULL,
			link       TEXT NOT NULL DEFAULT '',
			author     TEXT NOT NULL DEFAULT '',
			avatar     TEXT NOT NULL DEFAULT '',
			likes      INTEGER NOT NULL DEFAULT 0,
			width      INTEGER NOT NULL DEFAULT 0,
			height     INTEGER NOT NULL DEFAULT 0,
			meta       BLOB,
			published  DATETIME NOT NULL,
			fetched_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pins_source ON pins(source);

		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	var errs []error
	if c.readDB != nil {
		errs = append(errs, c.readDB.Close())
	}
	if c.writeDB != nil {
		errs = append(errs, c.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// UpsertPins inserts new pins at the end of the catalog and refreshes the
// metadata of known ones without moving them.
func (c *Cache) UpsertPins(pins []Pin) error {
	tx, err := c.writeDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO pins (key, source, title, image, link, author, avatar, likes, width, height, meta, published, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			title = excluded.title,
			image = excluded.image,
			likes = excluded.likes,
			width = excluded.width,
			height = excluded.height,
			meta = excluded.meta,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pins {
		meta, err := encodeMeta(p.Meta)
		if err != nil {
			return fmt.Errorf("encoding meta for pin %s: %w", p.Key, err)
		}
		_, err = stmt.Exec(p.Key, p.Source, p.Title, p.Image, p.Link, p.Author, p.Avatar,
			p.Likes, p.Width, p.Height, meta, p.Published, p.FetchedAt)
		if err != nil {
			return fmt.Errorf("upserting pin %s: %w", p.Key, err)
		}
	}

	return tx.Commit()
}

func (c *Cache) GetPins(opts QueryOpts) ([]Pin, error) {
	var (
		where []string
		args  []interface{}
	)

	if len(opts.Sources) > 0 {
		placeholders := make([]string, len(opts.Sources))
		for i, s := range opts.Sources {
			placeholders[i] = "?"
			args = append(args, s)
		}
		where = append(where, "source IN ("+strings.Join(placeholders, ",")+")") //nolint:gosec
	}

	query := "SELECT key, source, title, image, link, author, avatar, likes, width, height, meta, published, fetched_at FROM pins"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY position ASC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 500
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := c.readDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pins: %w", err)
	}
	defer rows.Close()

	var pins []Pin
	for rows.Next() {
		var (
			p    Pin
			meta []byte
		)
		if err := rows.Scan(&p.Key, &p.Source, &p.Title, &p.Image, &p.Link, &p.Author, &p.Avatar,
			&p.Likes, &p.Width, &p.Height, &meta, &p.Published, &p.FetchedAt); err != nil {
			return nil, fmt.Errorf("scanning pin: %w", err)
		}
		if p.Meta, err = decodeMeta(meta); err != nil {
			return nil, fmt.Errorf("decoding meta for pin %s: %w", p.Key, err)
		}
		pins = append(pins, p)
	}
	return pins, rows.Err()
}

func (c *Cache) Count(sources []string) (int, error) {
	query := "SELECT COUNT(*) FROM pins"
	var args []interface{}
	if len(sources) > 0 {
		placeholders := make([]string, len(sources))
		for i, s := range sources {
			placeholders[i] = "?"
			args = append(args, s)
		}
		query += " WHERE source IN (" + strings.Join(placeholders, ",") + ")" //nolint:gosec
	}
	var n int
	if err := c.readDB.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pins: %w", err)
	}
	return n, nil
}

// Prune deletes pins fetched longer ago than olderThan.
func (c *Cache) Prune(olderThan time.Duration) (int64, error) {
	res, err := c.writeDB.Exec("DELETE FROM pins WHERE fetched_at < ?", time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("pruning pins: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns the pin count and the on-disk size of the database file.
func (c *Cache) Stats(dbPath string) (int, int64, error) {
	count, err := c.Count(nil)
	if err != nil {
		return 0, 0, err
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		return 0, 0, fmt.Errorf("stat %s: %w", dbPath, err)
	}
	return count, info.Size(), nil
}

func (c *Cache) NeedsImport(interval time.Duration) bool {
	value, err := c.getMeta("last_import")
	if err != nil {
		return true
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return true
	}
	return time.Since(t) > interval
}

func (c *Cache) SetLastImport() error {
	return c.setMeta("last_import", time.Now().Format(time.RFC3339))
}

func (c *Cache) getMeta(key string) (string, error) {
	var value string
	err := c.readDB.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	return value, err
}

func (c *Cache) setMeta(key, value string) error {
	_, err := c.writeDB.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func encodeMeta(meta map[string]string) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	return msgpack.Marshal(meta)
}

func decodeMeta(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var meta map[string]string
	if err := msgpack.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

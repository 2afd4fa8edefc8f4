// Package calculations provides a TTL cache for expensive intermediate
// results (covariance matrices, factor tables) backed by the cache database.
package calculations

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/equitylens/engine/internal/database"
)

// Cache TTLs per result family.
const (
	TTLCovariance = 24 * time.Hour
	TTLFactors    = 24 * time.Hour
)

const schema = `
CREATE TABLE IF NOT EXISTS calc_cache (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	data BLOB NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);
`

// Cache is a namespaced TTL blob cache. Values are opaque bytes; callers
// choose the encoding (msgpack for numeric payloads).
type Cache struct {
	db  *database.DB
	log zerolog.Logger
}

// NewCache creates the cache and ensures its schema exists.
func NewCache(db *database.DB, log zerolog.Logger) (*Cache, error) {
	if _, err := db.Conn().Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &Cache{
		db:  db,
		log: log.With().Str("component", "calc_cache").Logger(),
	}, nil
}

// Get returns the cached blob for a key if present and not expired.
func (c *Cache) Get(namespace, key string) ([]byte, bool) {
	var data []byte
	var expiresAt int64
	err := c.db.Conn().QueryRow(
		`SELECT data, expires_at FROM calc_cache WHERE namespace = ? AND key = ?`,
		namespace, key).Scan(&data, &expiresAt)
	if err != nil {
		return nil, false
	}
	if time.Now().Unix() >= expiresAt {
		// Expired entries are removed lazily.
		_, _ = c.db.Conn().Exec(`DELETE FROM calc_cache WHERE namespace = ? AND key = ?`, namespace, key)
		return nil, false
	}
	return data, true
}

// Set stores a blob under a key with a TTL, replacing any previous value.
func (c *Cache) Set(namespace, key string, data []byte, ttl time.Duration) error {
	_, err := c.db.Conn().Exec(
		`INSERT INTO calc_cache (namespace, key, data, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		namespace, key, data, time.Now().Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("failed to cache %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Purge removes all expired entries and reports how many were deleted.
func (c *Cache) Purge() (int64, error) {
	res, err := c.db.Conn().Exec(`DELETE FROM calc_cache WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		c.log.Debug().Int64("removed", n).Msg("Purged expired cache entries")
	}
	return n, nil
}

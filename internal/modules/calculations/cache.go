// Package calculations provides a persistent cache for expensive analysis results.
// Entries are msgpack blobs with expiration timestamps.
package calculations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache stores msgpack-encoded values in the calculation_cache table.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger
}

// NewCache creates a cache whose entries expire ttl after they are stored.
func NewCache(db *sql.DB, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		db:  db,
		ttl: ttl,
		now: time.Now,
		log: log.With().Str("component", "calculation_cache").Logger(),
	}
}

// Key derives a stable cache key from the kind and the msgpack encoding of parts.
func Key(kind string, parts ...interface{}) (string, error) {
	h := sha256.New()
	h.Write([]byte(kind))
	enc := msgpack.NewEncoder(h)
	enc.SetSortMapKeys(true)
	for _, p := range parts {
		if err := enc.Encode(p); err != nil {
			return "", fmt.Errorf("failed to encode cache key part: %w", err)
		}
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// Store saves v under key with expiration = now + ttl. Existing entries are replaced.
func (c *Cache) Store(ctx context.Context, kind, key string, v interface{}) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	now := c.now()
	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO calculation_cache (key, kind, payload, created_at, expires_at) VALUES (?, ?, ?, ?, ?)",
		key, kind, payload, now.Unix(), now.Add(c.ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store %s in cache: %w", kind, err)
	}

	c.log.Debug().Str("kind", kind).Int("bytes", len(payload)).Msg("Stored calculation")
	return nil
}

// GetIfFresh decodes the entry under key into v when it has not expired.
// Returns false when the key is missing or stale.
func (c *Cache) GetIfFresh(ctx context.Context, key string, v interface{}) (bool, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT payload FROM calculation_cache WHERE key = ? AND expires_at > ?",
		key, c.now().Unix(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if err := msgpack.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return true, nil
}

// Invalidate removes every entry of a kind. Returns the number of rows deleted.
func (c *Cache) Invalidate(ctx context.Context, kind string) (int64, error) {
	result, err := c.db.ExecContext(ctx, "DELETE FROM calculation_cache WHERE kind = ?", kind)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate %s: %w", kind, err)
	}
	return result.RowsAffected()
}

// DeleteExpired removes all rows where expires_at <= now.
func (c *Cache) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx, "DELETE FROM calculation_cache WHERE expires_at <= ?", c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired calculations: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

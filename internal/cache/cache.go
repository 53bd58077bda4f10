package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cristianadrielbraun/qrlinks/internal/logging"
	"github.com/cristianadrielbraun/qrlinks/internal/qrrender"
)

const (
	keyPrefix = "qrcache:"
	opTimeout = time.Second
)

// RenderCache keeps rendered PNGs in Redis. A nil *RenderCache is valid and
// never hits.
type RenderCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps rdb. A non-positive ttl falls back to one minute.
func New(rdb *redis.Client, ttl time.Duration) *RenderCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RenderCache{rdb: rdb, ttl: ttl}
}

// Key fingerprints everything that influences the rendered bytes. renderer
// identifies the encoder and style, see qrrender.Renderer.Fingerprint.
func Key(renderer string, req qrrender.Request) string {
	h := sha256.New()
	var num [8]byte
	writeField := func(b []byte) {
		binary.BigEndian.PutUint64(num[:], uint64(len(b)))
		h.Write(num[:])
		h.Write(b)
	}
	writeField([]byte(renderer))
	writeField([]byte(req.Content))
	writeField([]byte(req.Mode.String()))
	binary.BigEndian.PutUint64(num[:], uint64(req.SizePx))
	h.Write(num[:])
	binary.BigEndian.PutUint64(num[:], uint64(req.Margin))
	h.Write(num[:])
	writeField(req.Logo)
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached PNG, or nil on a miss. Redis errors are logged and
// reported as misses.
func (c *RenderCache) Get(ctx context.Context, key string) []byte {
	if c == nil || c.rdb == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil
	}
	logging.Debug("QR cache hit", "key", key)
	return b
}

// Set stores png under key. Failures are logged and otherwise ignored.
func (c *RenderCache) Set(ctx context.Context, key string, png []byte) {
	if c == nil || c.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, key, png, c.ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}

// Ping checks the connection.
func (c *RenderCache) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

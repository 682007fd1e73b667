package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trunov/imageconv/internal/entities"
)

// ClientSource yields the current Redis client; redisholder.Holder swaps it
// on reconnect.
type ClientSource interface {
	Get() redis.UniversalClient
}

// Cache keeps finished conversions in Redis, keyed by the request.
type Cache struct {
	Redis     ClientSource
	Namespace string
	TTL       time.Duration
}

type entry struct {
	Data     []byte          `json:"data"`
	Format   entities.Format `json:"format"`
	Quality  int             `json:"quality"`
	Attempts int             `json:"attempts"`
}

// Create Redis backed result cache
func NewCache(namespace string, ttlSeconds int, redisCl ClientSource) *Cache {
	return &Cache{
		Namespace: namespace,
		Redis:     redisCl,
		TTL:       time.Duration(ttlSeconds) * time.Second,
	}
}

// Key fingerprints every input that influences the output bytes.
func Key(req entities.ConversionRequest) string {
	h := sha256.New()
	h.Write(req.Source)
	h.Write([]byte{0})
	h.Write([]byte(req.Format))
	if req.TargetSizeKB != nil {
		h.Write([]byte("|kb=" + strconv.FormatFloat(*req.TargetSizeKB, 'g', -1, 64)))
	}
	if req.QualityPercent != nil {
		h.Write([]byte("|q=" + strconv.Itoa(*req.QualityPercent)))
	}
	if req.Resize != nil {
		h.Write([]byte("|r=" + strconv.Itoa(req.Resize.Width) + "x" + strconv.Itoa(req.Resize.Height)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result; ok is false on a miss.
func (c *Cache) Get(ctx context.Context, key string) (res entities.ConversionResult, ok bool, err error) {
	raw, err := c.Redis.Get().Get(ctx, c.Namespace+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return res, false, nil
	}
	if err != nil {
		return res, false, err
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		_ = c.Remove(ctx, key)
		return res, false, err
	}
	return entities.ConversionResult{Data: e.Data, Format: e.Format, Quality: e.Quality, Attempts: e.Attempts}, true, nil
}

// Store result in Redis
func (c *Cache) Store(ctx context.Context, key string, res entities.ConversionResult) error {
	raw, err := json.Marshal(entry{Data: res.Data, Format: res.Format, Quality: res.Quality, Attempts: res.Attempts})
	if err != nil {
		return err
	}
	return c.Redis.Get().Set(ctx, c.Namespace+":"+key, raw, c.TTL).Err()
}

// Delete key from Redis
func (c *Cache) Remove(ctx context.Context, key string) error {
	return c.Redis.Get().Del(ctx, c.Namespace+":"+key).Err()
}

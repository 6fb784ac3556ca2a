package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda snapshots quentes de apostas e bolões para leituras da API.
// Toda escrita mutante invalida a chave; TTL curto cobre o resto.
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

func keyBet(id string) string     { return "wager:bet:" + id }
func keySquares(id string) string { return "wager:squares:" + id }

func (c *Cache) GetBet(ctx context.Context, id string, dst any) (bool, error) {
	return c.get(ctx, keyBet(id), dst)
}

func (c *Cache) SetBet(ctx context.Context, id string, v any, ttl time.Duration) error {
	return c.set(ctx, keyBet(id), v, ttl)
}

func (c *Cache) InvalidateBet(ctx context.Context, id string) {
	c.R.Del(ctx, keyBet(id))
}

func (c *Cache) GetSquares(ctx context.Context, id string, dst any) (bool, error) {
	return c.get(ctx, keySquares(id), dst)
}

func (c *Cache) SetSquares(ctx context.Context, id string, v any, ttl time.Duration) error {
	return c.set(ctx, keySquares(id), v, ttl)
}

func (c *Cache) InvalidateSquares(ctx context.Context, id string) {
	c.R.Del(ctx, keySquares(id))
}

func (c *Cache) get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, key, b, ttl).Err()
}

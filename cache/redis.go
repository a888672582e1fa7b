package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AlexJ236/Impulso-Digital/config"
	"github.com/AlexJ236/Impulso-Digital/rates"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func InitRedis(cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// RateCache keeps exchange-rate tables for a short window. Any Redis failure
// reads as a miss.
type RateCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRateCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RateCache {
	return &RateCache{rdb: rdb, ttl: ttl, logger: logger}
}

func ratesKey(base string) string {
	return fmt.Sprintf("rates:%s", base)
}

func (c *RateCache) GetRates(ctx context.Context, base string) (rates.Table, bool) {
	data, err := c.rdb.Get(ctx, ratesKey(base)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Rate cache read failed", zap.String("base", base), zap.Error(err))
		}
		return nil, false
	}

	var table rates.Table
	if err := json.Unmarshal(data, &table); err != nil || len(table) == 0 {
		c.logger.Warn("Discarding unreadable cached rates", zap.String("base", base), zap.Error(err))
		return nil, false
	}
	return table, true
}

func (c *RateCache) SetRates(ctx context.Context, base string, table rates.Table) error {
	data, err := json.Marshal(table)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, ratesKey(base), data, c.ttl).Err()
}

func (c *RateCache) DeleteRates(ctx context.Context, base string) error {
	return c.rdb.Del(ctx, ratesKey(base)).Err()
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"plantbot/internal/models"
)

// Ключи документов в Redis
const (
	bucketKeyPrefix = "bucket:"
	lastTokenKey    = "sensor:last_id"
	subscribersKey  = "users"
)

// maxCASRetries предел повторов optimistic-транзакции при конкуренции
const maxCASRetries = 5

// ErrConflict запись не применена из-за исчерпания CAS повторов
var ErrConflict = errors.New("store: too many concurrent updates")

// Client обертка для Redis клиента: дневные бакеты, последний токен
// сенсора и реестр подписчиков
type Client struct {
	rdb *redis.Client
}

// NewClient создает клиент хранилища и проверяет подключение
func NewClient(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetBucket читает бакет дня; (nil, nil) если дня еще нет
func (c *Client) GetBucket(ctx context.Context, dayKey string) (*models.DayBucket, error) {
	raw, err := c.rdb.Get(ctx, bucketKeyPrefix+dayKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bucket %s: %w", dayKey, err)
	}

	var bucket models.DayBucket
	if err := json.Unmarshal(raw, &bucket); err != nil {
		return nil, fmt.Errorf("unmarshal bucket %s: %w", dayKey, err)
	}
	return &bucket, nil
}

// PutBucket полная замена документа дня (upsert)
func (c *Client) PutBucket(ctx context.Context, bucket models.DayBucket) error {
	raw, err := json.Marshal(bucket)
	if err != nil {
		return fmt.Errorf("marshal bucket %s: %w", bucket.Date, err)
	}

	if err := c.rdb.Set(ctx, bucketKeyPrefix+bucket.Date, raw, 0).Err(); err != nil {
		return fmt.Errorf("put bucket %s: %w", bucket.Date, err)
	}
	return nil
}

// UpdateBucket атомарный get-then-put одного дня. Пара читается и
// пишется под WATCH ключа бакета: конкурентный писатель роняет
// транзакцию, и fold пересчитывается от свежего состояния. Без этого
// два параллельных fold-а читают один prior и одно обновление теряется.
func (c *Client) UpdateBucket(ctx context.Context, dayKey string, fold func(prev *models.DayBucket) models.DayBucket) (models.DayBucket, error) {
	key := bucketKeyPrefix + dayKey
	var updated models.DayBucket

	txn := func(tx *redis.Tx) error {
		var prev *models.DayBucket

		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
			prev = nil
		case err != nil:
			return fmt.Errorf("get bucket %s: %w", dayKey, err)
		default:
			var bucket models.DayBucket
			if err := json.Unmarshal(raw, &bucket); err != nil {
				return fmt.Errorf("unmarshal bucket %s: %w", dayKey, err)
			}
			prev = &bucket
		}

		updated = fold(prev)

		out, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal bucket %s: %w", dayKey, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxCASRetries; i++ {
		err := c.rdb.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return models.DayBucket{}, err
	}

	return models.DayBucket{}, fmt.Errorf("%w: bucket %s", ErrConflict, dayKey)
}

// LastToken читает последний обработанный id сенсора; "" если не записан
func (c *Client) LastToken(ctx context.Context) (string, error) {
	token, err := c.rdb.Get(ctx, lastTokenKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get last token: %w", err)
	}
	return token, nil
}

// SetLastToken фиксирует последний обработанный id сенсора
func (c *Client) SetLastToken(ctx context.Context, token string) error {
	if err := c.rdb.Set(ctx, lastTokenKey, token, 0).Err(); err != nil {
		return fmt.Errorf("set last token: %w", err)
	}
	return nil
}

// AddSubscriber регистрирует пользователя; true если id новый
func (c *Client) AddSubscriber(ctx context.Context, userID string) (bool, error) {
	added, err := c.rdb.SAdd(ctx, subscribersKey, userID).Result()
	if err != nil {
		return false, fmt.Errorf("add subscriber: %w", err)
	}
	return added > 0, nil
}

// Subscribers возвращает всех зарегистрированных пользователей
func (c *Client) Subscribers(ctx context.Context) ([]string, error) {
	users, err := c.rdb.SMembers(ctx, subscribersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return users, nil
}

// Ping проверяет доступность Redis
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close закрывает соединение с Redis
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Stats возвращает статистику пула соединений
func (c *Client) Stats() map[string]interface{} {
	stats := c.rdb.PoolStats()

	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}

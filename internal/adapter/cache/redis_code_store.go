package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/theseyan/418-nits-hacks/internal/domain"
	"github.com/theseyan/418-nits-hacks/internal/repository"
)

const codeKeyPrefix = "auth:code:"

// RedisCodeStore implements AuthCodeStore on Redis for multi-instance
// deployments. Single-use consumption rides on GETDEL being atomic.
type RedisCodeStore struct {
	client redis.UniversalClient
}

var _ repository.AuthCodeStore = (*RedisCodeStore)(nil)

// NewRedisCodeStore constructs a Redis-backed authorization-code store.
func NewRedisCodeStore(client redis.UniversalClient) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func (s *RedisCodeStore) Put(ctx context.Context, record domain.AuthCodeRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal code record: %w", err)
	}
	if err := s.client.Set(ctx, codeKeyPrefix+record.Code, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist code record: %w", err)
	}
	return nil
}

func (s *RedisCodeStore) Take(ctx context.Context, code string) (domain.AuthCodeRecord, error) {
	bytes, err := s.client.GetDel(ctx, codeKeyPrefix+code).Bytes()
	if err == redis.Nil {
		return domain.AuthCodeRecord{}, repository.ErrCodeNotFound
	}
	if err != nil {
		return domain.AuthCodeRecord{}, fmt.Errorf("take code record: %w", err)
	}

	var record domain.AuthCodeRecord
	if err := json.Unmarshal(bytes, &record); err != nil {
		return domain.AuthCodeRecord{}, fmt.Errorf("decode code record: %w", err)
	}
	if record.Expired(time.Now()) {
		return domain.AuthCodeRecord{}, repository.ErrCodeNotFound
	}
	return record, nil
}

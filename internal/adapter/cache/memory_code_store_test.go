package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/theseyan/418-nits-hacks/internal/adapter/cache"
	"github.com/theseyan/418-nits-hacks/internal/domain"
	"github.com/theseyan/418-nits-hacks/internal/repository"
)

func testRecord(code string, ttl time.Duration) domain.AuthCodeRecord {
	return domain.AuthCodeRecord{
		Code:          code,
		ClientID:      "client-1",
		UserID:        "user-1",
		CodeChallenge: "challenge",
		ExpiresAt:     time.Now().Add(ttl),
	}
}

func TestTakeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCodeStore()

	require.NoError(t, store.Put(ctx, testRecord("code-1", time.Minute), time.Minute))

	record, err := store.Take(ctx, "code-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", record.UserID)

	_, err = store.Take(ctx, "code-1")
	require.ErrorIs(t, err, repository.ErrCodeNotFound)
}

func TestTakeUnknownCode(t *testing.T) {
	store := cache.NewMemoryCodeStore()

	_, err := store.Take(context.Background(), "never-issued")
	require.ErrorIs(t, err, repository.ErrCodeNotFound)
}

func TestTakeExpiredCode(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCodeStore()

	require.NoError(t, store.Put(ctx, testRecord("code-1", -time.Second), -time.Second))

	_, err := store.Take(ctx, "code-1")
	require.ErrorIs(t, err, repository.ErrCodeNotFound)
}

func TestConcurrentTakeHasOneWinner(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryCodeStore()

	require.NoError(t, store.Put(ctx, testRecord("code-1", time.Minute), time.Minute))

	const goroutines = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Take(ctx, "code-1")
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			if !errors.Is(err, repository.ErrCodeNotFound) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, winners)
}

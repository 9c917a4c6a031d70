package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/CodeLensApp/CodeLens/app/repository"
	"github.com/CodeLensApp/CodeLens/internal/pkg/cache"
	"github.com/CodeLensApp/CodeLens/internal/pkg/database"
)

const aiUsageKey = "ai:counters:usage"

// usageHash is the slice of Redis the pending counters live on.
type usageHash interface {
	Rename(ctx context.Context, src, dst string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, incr int64) error
	Del(ctx context.Context, key string) error
}

type redisHash struct{}

func (redisHash) Rename(ctx context.Context, src, dst string) error {
	return cache.GetClient().Rename(ctx, src, dst).Err()
}

func (redisHash) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return cache.GetClient().HGetAll(ctx, key).Result()
}

func (redisHash) HIncrBy(ctx context.Context, key, field string, incr int64) error {
	return cache.GetClient().HIncrBy(ctx, key, field, incr).Err()
}

func (redisHash) Del(ctx context.Context, key string) error {
	return cache.GetClient().Del(ctx, key).Err()
}

// AddUsage increments the pending AI usage counter for an account in Redis
func AddUsage(email string) error {
	return redisHash{}.HIncrBy(context.Background(), aiUsageKey, email, 1)
}

// FlushAll folds pending usage counters into subscriptions.lifetime_usage
func FlushAll() error {
	return flushUsage(context.Background(), redisHash{}, applyUsage)
}

// flushUsage drains the hash with RENAME to a temp key, so increments racing
// the flush keep landing on the live key. A failed apply puts the drained
// counts back on the live key; the temp key is deleted only once the counts
// are persisted or restored.
func flushUsage(ctx context.Context, hash usageHash, apply func(map[string]int64) error) error {
	tmpKey := fmt.Sprintf("%s:tmp:%d", aiUsageKey, time.Now().UnixNano())
	if err := hash.Rename(ctx, aiUsageKey, tmpKey); err != nil {
		// missing key means nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		return err
	}

	data, err := hash.HGetAll(ctx, tmpKey)
	if err != nil {
		return err
	}

	counts := make(map[string]int64, len(data))
	for email, raw := range data {
		n, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || n == 0 {
			continue
		}
		counts[email] = n
	}
	if len(counts) == 0 {
		return hash.Del(ctx, tmpKey)
	}

	if err := apply(counts); err != nil {
		for _, email := range sortedKeys(counts) {
			if rerr := hash.HIncrBy(ctx, aiUsageKey, email, counts[email]); rerr != nil {
				// temp key stays behind for the operator
				return fmt.Errorf("usage flush failed (%v), restore failed: %w", err, rerr)
			}
		}
		_ = hash.Del(ctx, tmpKey)
		return err
	}
	return hash.Del(ctx, tmpKey)
}

// applyUsage folds drained counts into the account rows in one transaction,
// in a stable order so concurrent flushes cannot deadlock.
func applyUsage(counts map[string]int64) error {
	return database.GetDB().Transaction(func(tx *gorm.DB) error {
		subs := repository.NewSubscriptionRepository(tx)
		for _, email := range sortedKeys(counts) {
			if err := subs.AddLifetimeUsage(email, counts[email]); err != nil {
				return err
			}
		}
		return nil
	})
}

func sortedKeys(counts map[string]int64) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

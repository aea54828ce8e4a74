package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes concurrent reservation attempts on the same meal with a
// short-lived per-meal lock. The lock is contention relief only; the store's
// conditional stock update is what keeps the ledger consistent.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

const (
	acquireAttempts = 5
	acquireBackoff  = 50 * time.Millisecond
)

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getMealLockDuration returns the lock TTL from the environment or the default.
func (r *Redis) getMealLockDuration() time.Duration {
	defaultDuration := 10 * time.Second

	lockTTLStr := os.Getenv("MEAL_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid MEAL_LOCK_TTL_SECONDS value '" + lockTTLStr + "', using default 10 seconds")
		return defaultDuration
	}

	return time.Duration(lockTTLSec) * time.Second
}

// LockMeal acquires the per-meal lock for the given holder, retrying a few
// times before giving up.
func (r *Redis) LockMeal(mealID int64, holder string) (bool, error) {
	key := mealLockKey(mealID)
	lockDuration := r.getMealLockDuration()

	for attempt := 0; attempt < acquireAttempts; attempt++ {
		ok, err := r.Client.SetNX(context.Background(), key, holder, lockDuration).Result()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		time.Sleep(acquireBackoff)
	}
	return false, nil
}

// UnlockMeal releases the lock only if the holder still owns it.
func (r *Redis) UnlockMeal(mealID int64, holder string) error {
	ctx := context.Background()
	key := mealLockKey(mealID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == holder {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

func mealLockKey(mealID int64) string {
	return fmt.Sprintf("meal_lock:%d", mealID)
}

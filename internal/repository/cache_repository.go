package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-fees-api/pkg/errors"
)

// CacheRepository caches computed monthly plans in Redis. A nil client
// degrades every operation to a no-op so the engine keeps working when
// Redis is down or disabled.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	return &CacheRepository{client: client, logger: logger}
}

func planKey(schoolID, academicYearID, studentID string, year, month int) string {
	return fmt.Sprintf("fees:plan:%s:%s:%s:%04d-%02d", schoolID, academicYearID, studentID, year, month)
}

func studentPlanPattern(studentID string) string {
	return fmt.Sprintf("fees:plan:*:*:%s:*", studentID)
}

// GetPlan retrieves a cached plan into dest.
func (r *CacheRepository) GetPlan(ctx context.Context, schoolID, academicYearID, studentID string, year, month int, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}
	key := planKey(schoolID, academicYearID, studentID, year, month)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cached plan %s: %w", key, err)
	}
	return nil
}

// SetPlan stores a computed plan with the given TTL.
func (r *CacheRepository) SetPlan(ctx context.Context, schoolID, academicYearID, studentID string, year, month int, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	key := planKey(schoolID, academicYearID, studentID, year, month)
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal plan for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// InvalidateStudent drops every cached plan for a student.
func (r *CacheRepository) InvalidateStudent(ctx context.Context, studentID string) error {
	if r.client == nil {
		return nil
	}
	pattern := studentPlanPattern(studentID)
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

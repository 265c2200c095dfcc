package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Per-type retention windows. Security and admin events outlive
// ordinary access records; cross-tenant attempts additionally land in a
// global security feed kept for the longest window.
const (
	RetentionAccess      = 24 * time.Hour
	RetentionCrossTenant = 7 * 24 * time.Hour
	RetentionAdmin       = 30 * 24 * time.Hour
	RetentionSecurity    = 30 * 24 * time.Hour

	// maxBucketLen caps each list so a noisy tenant cannot grow redis
	// without bound inside the retention window.
	maxBucketLen = 10_000

	securityFeedKey = "audit:security"
)

// RedisStorage keeps events in capped redis lists, one bucket per
// event type per tenant and per user, each with a type-specific TTL.
type RedisStorage struct {
	client redis.UniversalClient
}

func NewRedisStorage(client redis.UniversalClient) *RedisStorage {
	return &RedisStorage{client: client}
}

func tenantBucket(t EventType, tenantID uuid.UUID) string {
	return fmt.Sprintf("audit:%s:tenant:%s", t, tenantID)
}

func userBucket(t EventType, userID string) string {
	return fmt.Sprintf("audit:%s:user:%s", t, userID)
}

func retention(t EventType) time.Duration {
	switch t {
	case TypeCrossTenantAttempt:
		return RetentionCrossTenant
	case TypeAdminOperation:
		return RetentionAdmin
	default:
		return RetentionAccess
	}
}

// StoreBatch appends all events atomically via a pipeline.
func (s *RedisStorage) StoreBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal audit event: %w", err)
		}

		ttl := retention(e.Type)
		keys := []string{tenantBucket(e.Type, e.TenantID)}
		if e.UserID != "" {
			keys = append(keys, userBucket(e.Type, e.UserID))
		}
		for _, key := range keys {
			pipe.LPush(ctx, key, payload)
			pipe.LTrim(ctx, key, 0, maxBucketLen-1)
			pipe.Expire(ctx, key, ttl)
		}

		if e.Type == TypeCrossTenantAttempt {
			pipe.LPush(ctx, securityFeedKey, payload)
			pipe.LTrim(ctx, securityFeedKey, 0, maxBucketLen-1)
			pipe.Expire(ctx, securityFeedKey, RetentionSecurity)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store audit events: %w", err)
	}
	return nil
}

// RecentByTenant returns up to n most recent events for the tenant
// across all event types.
func (s *RedisStorage) RecentByTenant(ctx context.Context, tenantID uuid.UUID, n int) ([]Event, error) {
	keys := []string{
		tenantBucket(TypeAccess, tenantID),
		tenantBucket(TypeCrossTenantAttempt, tenantID),
		tenantBucket(TypeAdminOperation, tenantID),
	}
	return s.readMerged(ctx, keys, n)
}

// RecentByUser returns up to n most recent events for the user across
// all event types.
func (s *RedisStorage) RecentByUser(ctx context.Context, userID string, n int) ([]Event, error) {
	keys := []string{
		userBucket(TypeAccess, userID),
		userBucket(TypeCrossTenantAttempt, userID),
		userBucket(TypeAdminOperation, userID),
	}
	return s.readMerged(ctx, keys, n)
}

// SecurityFeed returns up to n most recent cross-tenant attempts
// across all tenants.
func (s *RedisStorage) SecurityFeed(ctx context.Context, n int) ([]Event, error) {
	return s.readMerged(ctx, []string{securityFeedKey}, n)
}

func (s *RedisStorage) readMerged(ctx context.Context, keys []string, n int) ([]Event, error) {
	if n <= 0 {
		n = 50
	}

	var events []Event
	for _, key := range keys {
		raw, err := s.client.LRange(ctx, key, 0, int64(n)-1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read audit bucket %s: %w", key, err)
		}
		for _, item := range raw {
			var e Event
			if err := json.Unmarshal([]byte(item), &e); err != nil {
				continue
			}
			events = append(events, e)
		}
	}

	sortByTimestampDesc(events)
	if len(events) > n {
		events = events[:n]
	}
	return events, nil
}

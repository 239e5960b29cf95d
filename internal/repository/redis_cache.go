package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/pkg/logger"
)

const (
	slotsKeyPrefix = "org_slots:"

	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository caches seat ledgers in Redis
type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCacheRepository connects to Redis and verifies the connection
func NewRedisCacheRepository(ctx context.Context, addr, password string, db int, ttl time.Duration, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Errorw("Failed to connect to Redis", "error", err, "addr", addr)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis", "addr", addr)
	return NewRedisCacheFromClient(client, ttl, log), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCacheRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCacheRepository{client: client, ttl: ttl, log: log}
}

// Close closes the Redis connection
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

func slotsKey(orgID string) string {
	return slotsKeyPrefix + orgID
}

// CacheSlots stores the ledger for the configured TTL
func (r *RedisCacheRepository) CacheSlots(ctx context.Context, slots *domain.SlotAvailability) error {
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("failed to marshal slot availability: %w", err)
	}
	if err := r.client.Set(ctx, slotsKey(slots.OrganizationID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache slot availability: %w", err)
	}
	r.log.Debugw("Slot availability cached", "organizationID", slots.OrganizationID)
	return nil
}

// GetCachedSlots returns nil, nil on a cache miss
func (r *RedisCacheRepository) GetCachedSlots(ctx context.Context, orgID string) (*domain.SlotAvailability, error) {
	data, err := r.client.Get(ctx, slotsKey(orgID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get slot availability from cache: %w", err)
	}

	var slots domain.SlotAvailability
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached slot availability: %w", err)
	}
	return &slots, nil
}

// DeleteCachedSlots drops the cached ledger
func (r *RedisCacheRepository) DeleteCachedSlots(ctx context.Context, orgID string) error {
	if err := r.client.Del(ctx, slotsKey(orgID)).Err(); err != nil {
		return fmt.Errorf("failed to delete slot availability from cache: %w", err)
	}
	r.log.Debugw("Slot availability cache invalidated", "organizationID", orgID)
	return nil
}

package repository

import (
	"context"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/pkg/logger"
)

// CachedSlotRepository reads ledgers through Redis. Cache failures are logged
// and fall through to the underlying repository.
type CachedSlotRepository struct {
	repo  SlotRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSlotRepository decorates repo with the Redis cache
func NewCachedSlotRepository(repo SlotRepository, cache *RedisCacheRepository, log *logger.Logger) *CachedSlotRepository {
	return &CachedSlotRepository{repo: repo, cache: cache, log: log}
}

func (r *CachedSlotRepository) GetSlotAvailability(ctx context.Context, orgID string) (*domain.SlotAvailability, error) {
	cached, err := r.cache.GetCachedSlots(ctx, orgID)
	if err != nil {
		r.log.Warnw("Error reading slot availability from cache", "error", err, "organizationID", orgID)
	}
	if cached != nil {
		return cached, nil
	}

	slots, err := r.repo.GetSlotAvailability(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.CacheSlots(ctx, slots); err != nil {
		r.log.Warnw("Failed to cache slot availability", "error", err, "organizationID", orgID)
	}
	return slots, nil
}

// InvalidateSlots drops the cached ledger after a write committed.
func (r *CachedSlotRepository) InvalidateSlots(ctx context.Context, orgID string) error {
	return r.cache.DeleteCachedSlots(ctx, orgID)
}

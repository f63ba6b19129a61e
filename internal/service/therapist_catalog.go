package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/therapy-match-api/internal/models"
)

type therapistProfileReader interface {
	List(ctx context.Context, filter models.TherapistFilter) ([]models.TherapistProfile, error)
}

var publicProfilesKey = CacheKey("therapists", "public")

// TherapistCatalog serves the publicly visible profile list from cache, falling
// back to the repository. Directory search and matching share it.
type TherapistCatalog struct {
	repo   therapistProfileReader
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewTherapistCatalog constructs a catalog.
func NewTherapistCatalog(repo therapistProfileReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *TherapistCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TherapistCatalog{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// PublicProfiles returns verified, visible, non-deleted profiles in stable order.
func (c *TherapistCatalog) PublicProfiles(ctx context.Context) ([]models.TherapistProfile, error) {
	var profiles []models.TherapistProfile
	if c.cache.Get(ctx, publicProfilesKey, &profiles) {
		return profiles, nil
	}

	profiles, err := c.repo.List(ctx, models.TherapistFilter{PublicOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list public therapists: %w", err)
	}
	c.cache.Set(ctx, publicProfilesKey, profiles, c.ttl)
	return profiles, nil
}

// Invalidate drops every cached therapist listing.
func (c *TherapistCatalog) Invalidate(ctx context.Context) {
	c.cache.Invalidate(ctx, CacheKey("therapists", "*"))
}

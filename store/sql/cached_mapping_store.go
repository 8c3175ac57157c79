package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/funtoco/go-connectors/wizard"
)

const mappingCacheKeyPrefix = "go-connectors::field_mapping::v1"

// CachedMappingStore layers a cache service over mapping reads. Writes
// go through to the base store and invalidate the cached entry.
type CachedMappingStore struct {
	base  wizard.MappingStore
	cache repositorycache.CacheService
}

func NewCachedMappingStore(base wizard.MappingStore, cacheService repositorycache.CacheService) (*CachedMappingStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base mapping store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: mapping cache service is required")
	}
	return &CachedMappingStore{base: base, cache: cacheService}, nil
}

// MappingCacheKey is the deterministic cache key for mapping reads:
// go-connectors::field_mapping::v1::<id> with the id URL-path escaped.
func MappingCacheKey(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: mapping id is required")
	}
	return mappingCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedMappingStore) Get(ctx context.Context, id string) (wizard.MappingDraft, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return wizard.MappingDraft{}, fmt.Errorf("sqlstore: cached mapping store is not configured")
	}
	cacheKey, err := MappingCacheKey(id)
	if err != nil {
		return wizard.MappingDraft{}, err
	}

	draft, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (wizard.MappingDraft, error) {
		fetched, fetchErr := s.base.Get(ctx, strings.TrimSpace(id))
		if fetchErr != nil {
			return wizard.MappingDraft{}, fetchErr
		}
		return cloneMappingDraft(fetched), nil
	})
	if err != nil {
		return wizard.MappingDraft{}, err
	}
	return cloneMappingDraft(draft), nil
}

func (s *CachedMappingStore) SaveDraft(ctx context.Context, draft wizard.MappingDraft) (wizard.MappingDraft, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return wizard.MappingDraft{}, fmt.Errorf("sqlstore: cached mapping store is not configured")
	}
	saved, err := s.base.SaveDraft(ctx, draft)
	if err != nil {
		return wizard.MappingDraft{}, err
	}
	if err := s.invalidate(ctx, saved.ID); err != nil {
		return wizard.MappingDraft{}, err
	}
	return saved, nil
}

func (s *CachedMappingStore) Activate(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached mapping store is not configured")
	}
	if err := s.base.Activate(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

func (s *CachedMappingStore) invalidate(ctx context.Context, id string) error {
	cacheKey, err := MappingCacheKey(id)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneMappingDraft(draft wizard.MappingDraft) wizard.MappingDraft {
	cloned := draft
	cloned.Mappings = append([]wizard.FieldMapping(nil), draft.Mappings...)
	return cloned
}

var _ wizard.MappingStore = (*CachedMappingStore)(nil)

package resolver

import (
	"context"
	"dcsingest/pkg/message"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU cache in front of a slower lookup. Misses are cached too.
type CachedLookup struct {
	backing Lookup
	cache   *lru.Cache[string, *message.Platform]
}

func NewCachedLookup(backing Lookup, size int) (cached *CachedLookup, err error) {
	cache, err := lru.New[string, *message.Platform](size)
	if err != nil {
		err = fmt.Errorf("failed to create platform cache: %v", err)
		return
	}
	cached = &CachedLookup{backing: backing, cache: cache}
	return
}

func cacheKey(mediumType, mediumID string) string {
	family := strings.ToLower(mediumType)
	if isGOES(family) {
		family = message.MediumGOES
	}
	return family + "|" + strings.ToUpper(mediumID)
}

func (cached *CachedLookup) Lookup(ctx context.Context, mediumType, mediumID string, timestamp time.Time) (platform *message.Platform, err error) {
	key := cacheKey(mediumType, mediumID)
	platform, ok := cached.cache.Get(key)
	if ok {
		return
	}

	platform, err = cached.backing.Lookup(ctx, mediumType, mediumID, timestamp)
	if err != nil {
		return
	}
	cached.cache.Add(key, platform)
	return
}

// Drops all cached entries (after the backing data changed)
func (cached *CachedLookup) Purge() {
	cached.cache.Purge()
}

func (cached *CachedLookup) Len() int {
	return cached.cache.Len()
}

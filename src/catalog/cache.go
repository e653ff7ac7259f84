package catalog

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry[T any] struct {
	value T
	err   error
}

// CachedLookup memoizes the answers of another Lookup. Successful answers and
// deterministic misses are cached; transient failures are not.
type CachedLookup struct {
	inner     Lookup
	databases *lru.Cache[int64, cacheEntry[Database]]
	hobts     *lru.Cache[string, cacheEntry[Hobt]]
	objects   *lru.Cache[string, cacheEntry[Object]]
	pages     *lru.Cache[string, cacheEntry[Page]]
}

// NewCachedLookup wraps inner with caches holding up to size entries each
func NewCachedLookup(inner Lookup, size int) (*CachedLookup, error) {
	databases, err := lru.New[int64, cacheEntry[Database]](size)
	if err != nil {
		return nil, err
	}
	hobts, err := lru.New[string, cacheEntry[Hobt]](size)
	if err != nil {
		return nil, err
	}
	objects, err := lru.New[string, cacheEntry[Object]](size)
	if err != nil {
		return nil, err
	}
	pages, err := lru.New[string, cacheEntry[Page]](size)
	if err != nil {
		return nil, err
	}

	return &CachedLookup{
		inner:     inner,
		databases: databases,
		hobts:     hobts,
		objects:   objects,
		pages:     pages,
	}, nil
}

// DatabaseState implements Lookup
func (c *CachedLookup) DatabaseState(ctx context.Context, databaseID int64) (Database, error) {
	return cached(c.databases, databaseID, func() (Database, error) {
		return c.inner.DatabaseState(ctx, databaseID)
	})
}

// LookupHobt implements Lookup
func (c *CachedLookup) LookupHobt(ctx context.Context, databaseName string, hobtID int64) (Hobt, error) {
	key := fmt.Sprintf("%s|%d", databaseName, hobtID)
	return cached(c.hobts, key, func() (Hobt, error) {
		return c.inner.LookupHobt(ctx, databaseName, hobtID)
	})
}

// DescribeObject implements Lookup
func (c *CachedLookup) DescribeObject(ctx context.Context, databaseName string, objectID int64, indexID *int64) (Object, error) {
	key := fmt.Sprintf("%s|%d|-", databaseName, objectID)
	if indexID != nil {
		key = fmt.Sprintf("%s|%d|%d", databaseName, objectID, *indexID)
	}
	return cached(c.objects, key, func() (Object, error) {
		return c.inner.DescribeObject(ctx, databaseName, objectID, indexID)
	})
}

// DescribePage implements Lookup
func (c *CachedLookup) DescribePage(ctx context.Context, databaseID, fileID, pageID int64) (Page, error) {
	key := fmt.Sprintf("%d:%d:%d", databaseID, fileID, pageID)
	return cached(c.pages, key, func() (Page, error) {
		return c.inner.DescribePage(ctx, databaseID, fileID, pageID)
	})
}

func cached[K comparable, T any](cache *lru.Cache[K, cacheEntry[T]], key K, load func() (T, error)) (T, error) {
	if entry, ok := cache.Get(key); ok {
		return entry.value, entry.err
	}

	value, err := load()
	if cacheable(err) {
		cache.Add(key, cacheEntry[T]{value: value, err: err})
	}
	return value, err
}

func cacheable(err error) bool {
	return err == nil ||
		errors.Is(err, ErrDatabaseNotFound) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPageInspectionUnsupported)
}

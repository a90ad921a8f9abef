package stringcatalog

import (
	"context"

	"github.com/rzpsarthak13/string-catalog/internal/catalog"
	"github.com/rzpsarthak13/string-catalog/internal/core"
)

// cacheSync keeps the record cache in line with committed changes: created
// records are loaded from the catalog, deleted ones evicted. It repairs
// entries a concurrent write left stale.
type cacheSync struct {
	cache *catalog.Cached
}

func (s cacheSync) Handle(ctx context.Context, event *core.CatalogEvent) error {
	switch event.Type {
	case core.EventCreated:
		return s.cache.Refresh(ctx, event.Value)
	case core.EventDeleted:
		s.cache.Evict(ctx, event.RecordID)
	}
	return nil
}

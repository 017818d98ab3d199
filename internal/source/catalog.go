package source

import (
	"context"
	"fmt"

	"github.com/matheuskafuri/pinfeed/internal/cache"
)

// Catalog pages through the pins stored in the local sqlite catalog, in
// insertion order.
type Catalog struct {
	db      *cache.Cache
	sources []string
}

// NewCatalog returns a source over db. A non-empty sources list restricts
// the feed to pins imported from those feeds.
func NewCatalog(db *cache.Cache, sources ...string) *Catalog {
	return &Catalog{db: db, sources: sources}
}

func (c *Catalog) FetchPage(ctx context.Context, index, size int) (Page, error) {
	if err := checkArgs(index, size); err != nil {
		return Page{}, err
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	pins, err := c.db.GetPins(cache.QueryOpts{
		Offset:  index * size,
		Limit:   size,
		Sources: c.sources,
	})
	if err != nil {
		return Page{}, fmt.Errorf("catalog page %d: %w", index, err)
	}
	return Page{Index: index, Items: pins}, nil
}

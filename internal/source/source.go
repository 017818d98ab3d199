// Package source abstracts the ordered item collection the feed pages through.
package source

import (
	"context"
	"errors"

	"github.com/matheuskafuri/pinfeed/internal/cache"
)

var ErrInvalidPage = errors.New("source: page index must be non-negative")

// Page is one fetch unit. A page shorter than the requested size (or empty)
// marks the end of the source.
type Page struct {
	Index int
	Items []cache.Pin
}

// Last reports whether the page signals end-of-source for the given size.
func (p Page) Last(size int) bool { return len(p.Items) < size }

// PageSource yields successive pages of at most size items. Asking past the
// end returns an empty page, not an error.
type PageSource interface {
	FetchPage(ctx context.Context, index, size int) (Page, error)
}

// PageSourceFunc adapts a plain function to PageSource.
type PageSourceFunc func(ctx context.Context, index, size int) (Page, error)

func (f PageSourceFunc) FetchPage(ctx context.Context, index, size int) (Page, error) {
	return f(ctx, index, size)
}

func checkArgs(index, size int) error {
	if index < 0 || size <= 0 {
		return ErrInvalidPage
	}
	return nil
}

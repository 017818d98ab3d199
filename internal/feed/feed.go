package feed

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/matheuskafuri/pinfeed/internal/cache"
	"github.com/matheuskafuri/pinfeed/internal/config"
)

type Fetcher interface {
	Fetch(ctx context.Context, source config.Source) ([]cache.Pin, error)
}

// MediaFetcher turns RSS/Atom items that reference an image into pins.
// Items without any image are skipped.
type MediaFetcher struct {
	parser *gofeed.Parser
}

func NewMediaFetcher() *MediaFetcher {
	return &MediaFetcher{parser: gofeed.NewParser()}
}

func (f *MediaFetcher) Fetch(ctx context.Context, source config.Source) ([]cache.Pin, error) {
	feed, err := f.parser.ParseURLWithContext(source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source.Name, err)
	}

	now := time.Now()
	var avatar string
	if feed.Image != nil {
		avatar = feed.Image.URL
	}
	pins := make([]cache.Pin, 0, len(feed.Items))
	for _, item := range feed.Items {
		img := itemImage(item)
		if img.url == "" {
			continue
		}

		pub := now
		if item.PublishedParsed != nil {
			pub = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = *item.UpdatedParsed
		}

		author := feed.Title
		if item.Author != nil && item.Author.Name != "" {
			author = item.Author.Name
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		meta := map[string]string{"feed": feed.Title}
		if d := truncate(stripHTML(desc), 300); d != "" {
			meta["description"] = d
		}
		if item.GUID != "" {
			meta["guid"] = item.GUID
		}
		if len(item.Categories) > 0 {
			meta["categories"] = strings.Join(item.Categories, ", ")
		}

		id := item.Link
		if id == "" {
			id = img.url
		}
		pins = append(pins, cache.Pin{
			Key:       pinKey(id),
			Source:    source.Name,
			Title:     item.Title,
			Image:     img.url,
			Link:      item.Link,
			Author:    author,
			Avatar:    avatar,
			Width:     img.width,
			Height:    img.height,
			Meta:      meta,
			Published: pub,
			FetchedAt: now,
		})
	}
	return pins, nil
}

type imageRef struct {
	url           string
	width, height int
}

// itemImage picks the image an item points at, preferring media:content
// (which may declare dimensions), then the parsed item image, image
// enclosures, media:thumbnail and finally the first <img> in the body.
func itemImage(item *gofeed.Item) imageRef {
	if ref, ok := mediaImage(item.Extensions, "content"); ok {
		return ref
	}
	if item.Image != nil && item.Image.URL != "" {
		return imageRef{url: item.Image.URL}
	}
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return imageRef{url: enc.URL}
		}
	}
	if ref, ok := mediaImage(item.Extensions, "thumbnail"); ok {
		return ref
	}
	for _, body := range []string{item.Content, item.Description} {
		if src := firstImgSrc(body); src != "" {
			return imageRef{url: src}
		}
	}
	return imageRef{}
}

func mediaImage(exts ext.Extensions, name string) (imageRef, bool) {
	media, ok := exts["media"]
	if !ok {
		return imageRef{}, false
	}
	candidates := media[name]
	// media:group wraps alternatives in some feeds.
	for _, g := range media["group"] {
		candidates = append(candidates, g.Children[name]...)
	}
	for _, e := range candidates {
		u := e.Attrs["url"]
		if u == "" {
			continue
		}
		if m := e.Attrs["medium"]; m != "" && m != "image" {
			continue
		}
		if t := e.Attrs["type"]; t != "" && !strings.HasPrefix(t, "image/") {
			continue
		}
		w, _ := strconv.Atoi(e.Attrs["width"])
		h, _ := strconv.Atoi(e.Attrs["height"])
		if w <= 0 || h <= 0 {
			w, h = 0, 0
		}
		return imageRef{url: u, width: w, height: h}, true
	}
	return imageRef{}, false
}

func firstImgSrc(html string) string {
	i := strings.Index(strings.ToLower(html), "<img")
	if i < 0 {
		return ""
	}
	tag := html[i:]
	if end := strings.IndexByte(tag, '>'); end >= 0 {
		tag = tag[:end]
	}
	j := strings.Index(tag, "src=")
	if j < 0 || j+5 > len(tag) {
		return ""
	}
	rest := tag[j+4:]
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return ""
	}
	rest = rest[1:]
	k := strings.IndexByte(rest, quote)
	if k < 0 {
		return ""
	}
	src := rest[:k]
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	return src
}

func pinKey(link string) string {
	h := sha256.Sum256([]byte(link))
	return fmt.Sprintf("%x", h[:16])
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

type FetchResult struct {
	Pins   []cache.Pin
	Errors []error
}

// FetchAll fetches every source concurrently. Pins keep per-source feed
// order; sources are appended in the order they finish.
func FetchAll(ctx context.Context, fetcher Fetcher, sources []config.Source) FetchResult {
	var (
		mu     sync.Mutex
		result FetchResult
		wg     sync.WaitGroup
	)

	if fetcher == nil {
		fetcher = NewMediaFetcher()
	}

	for _, src := range sources {
		wg.Add(1)
		go func(s config.Source) {
			defer wg.Done()
			pins, err := fetcher.Fetch(ctx, s)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, err)
				return
			}
			result.Pins = append(result.Pins, pins...)
		}(src)
	}

	wg.Wait()
	return result
}

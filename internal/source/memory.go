package source

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/matheuskafuri/pinfeed/internal/cache"
)

// Memory serves pages from an in-memory slice.
type Memory struct {
	pins    []cache.Pin
	latency time.Duration
}

type MemoryOption func(*Memory)

// WithLatency delays every fetch, as a network-backed source would.
func WithLatency(d time.Duration) MemoryOption {
	return func(m *Memory) { m.latency = d }
}

func NewMemory(pins []cache.Pin, opts ...MemoryOption) *Memory {
	m := &Memory{pins: pins}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Len() int { return len(m.pins) }

func (m *Memory) FetchPage(ctx context.Context, index, size int) (Page, error) {
	if err := checkArgs(index, size); err != nil {
		return Page{}, err
	}
	if m.latency > 0 {
		t := time.NewTimer(m.latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return Page{}, ctx.Err()
		}
	}

	page := Page{Index: index}
	start := index * size
	if start >= len(m.pins) {
		return page, nil
	}
	end := min(start+size, len(m.pins))
	page.Items = append([]cache.Pin(nil), m.pins[start:end]...)
	return page, nil
}

var demoTitles = []string{
	"Minimalist Interior Design", "Urban Photography", "Healthy Breakfast Ideas",
	"Travel Destinations 2024", "DIY Home Decor", "Abstract Art Inspiration",
	"Summer Fashion Trends", "Modern Architecture", "Nature Landscapes",
	"Creative Workspace Setup", "Digital Art Showcase", "Vintage aesthetics",
}

var demoAuthors = []struct{ name, avatar string }{
	{"Sarah Jenkins", "https://i.pravatar.cc/150?u=1"},
	{"Creative Studio", "https://i.pravatar.cc/150?u=2"},
	{"Design Daily", "https://i.pravatar.cc/150?u=3"},
	{"Alex Morgan", "https://i.pravatar.cc/150?u=4"},
	{"Visual Arts", "https://i.pravatar.cc/150?u=5"},
}

// demoHeights are native heights for a 236px wide image; picsum serves any size.
var demoHeights = []int{300, 354, 236, 413, 314, 177, 420, 280}

// Demo returns n mock pins. Titles and authors cycle, likes come from a fixed
// seed, so the same n always yields the same feed.
func Demo(n int) []cache.Pin {
	rng := rand.New(rand.NewSource(236))
	now := time.Now()
	pins := make([]cache.Pin, n)
	for i := range pins {
		author := demoAuthors[i%len(demoAuthors)]
		width := 236
		if i%3 == 1 {
			width = 472
		}
		height := demoHeights[i%len(demoHeights)] * width / 236
		pins[i] = cache.Pin{
			Key:       fmt.Sprintf("pin-%d", i),
			Source:    "demo",
			Title:     demoTitles[i%len(demoTitles)],
			Image:     fmt.Sprintf("https://picsum.photos/seed/pin%d/%d/%d", i, width, height),
			Author:    author.name,
			Avatar:    author.avatar,
			Likes:     rng.Intn(1000) + 100,
			Width:     width,
			Height:    height,
			Published: now.Add(-time.Duration(i) * time.Hour),
			FetchedAt: now,
		}
	}
	return pins
}

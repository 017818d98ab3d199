package cache

import "time"

// Pin is one feed item. Key is unique within a feed; everything else is
// display metadata the core never interprets, apart from the declared size.
type Pin struct {
	Key       string
	Source    string
	Title     string
	Image     string
	Link      string
	Author    string
	Avatar    string
	Likes     int
	Width     int // declared natural width, 0 when unknown
	Height    int // declared natural height, 0 when unknown
	Meta      map[string]string
	Published time.Time
	FetchedAt time.Time
}

// HasDeclaredSize reports whether the pin carries usable width/height metadata.
func (p Pin) HasDeclaredSize() bool {
	return p.Width > 0 && p.Height > 0
}

type QueryOpts struct {
	Offset  int
	Limit   int
	Sources []string
}

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/matheuskafuri/pinfeed/internal/cache"
	"github.com/matheuskafuri/pinfeed/internal/size"
)

type cardView struct {
	pin      cache.Pin
	size     size.LayoutSize
	skeleton bool
	pending  bool
	fallback bool
	selected bool
	footer   bool
}

// footerRows is how many inner rows a card footer takes.
const footerRows = 2

// renderCard draws c as exactly rows lines of width cells.
func renderCard(c cardView, width, rows int) []string {
	innerW := max(1, width-2)
	innerH := max(1, rows-2)

	imageRows := innerH
	showFooter := c.footer && !c.skeleton && innerH > footerRows+1
	if showFooter {
		imageRows -= footerRows
	}

	body := make([]string, 0, innerH)
	for y := 0; y < imageRows; y++ {
		body = append(body, imageLine(c, y, imageRows, innerW))
	}
	if showFooter {
		title := fit(c.pin.Title, innerW)
		meta := fmt.Sprintf("♥ %d  %s", c.pin.Likes, c.pin.Author)
		body = append(body,
			cardTitleStyle.Render(title),
			likesStyle.Render(fit(meta, innerW)),
		)
	}

	style := cardStyle
	if c.selected {
		style = cardSelectedStyle
	}
	out := strings.Split(style.Width(innerW).Render(strings.Join(body, "\n")), "\n")
	for len(out) < rows {
		out = append(out, strings.Repeat(" ", width))
	}
	return out[:rows]
}

func imageLine(c cardView, y, imageRows, width int) string {
	switch {
	case c.skeleton || c.pending:
		if y == imageRows/2 && c.pending {
			return skeletonStyle.Render(center("measuring…", width, '░'))
		}
		return skeletonStyle.Render(strings.Repeat("░", width))
	case y == 0 && !c.footer:
		// Without a footer the title sits on the image.
		return imageStyle.Render(fit(" "+c.pin.Title, width))
	case y == imageRows/2:
		label := c.size.String()
		if c.fallback {
			return fallbackImageStyle.Render(center(label+" ?", width, '▒'))
		}
		return imageStyle.Render(center(label, width, '▓'))
	case c.fallback:
		return fallbackImageStyle.Render(strings.Repeat("▒", width))
	default:
		return imageStyle.Render(strings.Repeat("▓", width))
	}
}

// fit truncates s to width cells and pads it on the right.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

// center puts label in the middle of a width-cell line filled with fill.
func center(label string, width int, fill rune) string {
	label = runewidth.Truncate(" "+label+" ", width, "")
	w := runewidth.StringWidth(label)
	left := (width - w) / 2
	right := width - w - left
	return strings.Repeat(string(fill), left) + label + strings.Repeat(string(fill), right)
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// renderDetail is the one-line description of the selected pin.
func renderDetail(p *cache.Pin, width int) string {
	if p == nil {
		return detailStyle.Render("")
	}
	parts := []string{p.Title}
	if p.Author != "" {
		parts = append(parts, p.Author)
	}
	if p.Source != "" {
		parts = append(parts, p.Source)
	}
	if !p.Published.IsZero() {
		parts = append(parts, relativeTime(p.Published))
	}
	if p.Link != "" {
		parts = append(parts, p.Link)
	} else if p.Image != "" {
		parts = append(parts, p.Image)
	}
	line := strings.Join(parts, " · ")
	return detailStyle.Render(fit(line, max(0, width-1)))
}

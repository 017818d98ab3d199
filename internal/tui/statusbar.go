package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/matheuskafuri/pinfeed/internal/controller"
)

type status struct {
	pins      int
	mode      string
	state     controller.State
	measuring int
	err       error
}

func renderStatusBar(s status, spin string, width int) string {
	left := fmt.Sprintf(" %d pins · %s", s.pins, s.mode)
	switch s.state {
	case controller.Fetching:
		left = spin + left + " · loading"
	case controller.Exhausted:
		left += " · end of feed"
	}
	if s.measuring > 0 {
		left += fmt.Sprintf(" · measuring %d", s.measuring)
	}
	if s.err != nil {
		left = errorStyle.Render(" " + s.err.Error() + " (r retry)")
	}

	right := " m mode  n/p select  o open  ? help  q quit "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + fmt.Sprintf("%*s", gap, "") + right

	return statusBarStyle.Width(width).MaxWidth(width).Render(bar)
}

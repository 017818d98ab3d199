package tui

import (
	"math"
	"strings"

	"github.com/matheuskafuri/pinfeed/internal/size"
)

// cellPx is how many layout units one terminal column stands for.
const cellPx = 8.0

const (
	minColumnCells = 12
	minCardRows    = 4
	rowGap         = 1
)

type grid struct {
	columns  int
	colWidth int
	gap      int
}

// newGrid fits as many columns of at least minWidth units into width cells
// as possible, separated by gap units.
func newGrid(width int, minWidth, gap float64) grid {
	minCells := max(minColumnCells, int(math.Round(minWidth/cellPx)))
	gapCells := max(1, int(math.Round(gap/cellPx)))
	cols := max(1, (width+gapCells)/(minCells+gapCells))
	colWidth := max(1, (width-gapCells*(cols-1))/cols)
	return grid{columns: cols, colWidth: colWidth, gap: gapCells}
}

// rows is the height in terminal rows of a card of size s once its width is
// scaled to the column. Cells are about twice as tall as they are wide.
func (g grid) rows(s size.LayoutSize) int {
	if !s.Valid() {
		return minCardRows
	}
	h := s.Height / s.Width * float64(g.colWidth) / 2
	return max(minCardRows, int(math.Round(h)))
}

type placement struct {
	col  int
	top  int
	rows int
}

// masonry assigns each item to the shortest column when it is first placed
// and keeps that column afterwards, so a late size correction only shifts
// the cards below it in the same column.
type masonry struct {
	grid     grid
	assigned []int
}

func (m *masonry) reset(g grid) {
	m.grid = g
	m.assigned = m.assigned[:0]
}

func (m *masonry) layout(heights []int) []placement {
	cols := max(1, m.grid.columns)
	tops := make([]int, cols)
	out := make([]placement, len(heights))
	for i, h := range heights {
		var c int
		if i < len(m.assigned) {
			c = m.assigned[i]
		} else {
			c = shortest(tops)
			m.assigned = append(m.assigned, c)
		}
		out[i] = placement{col: c, top: tops[c], rows: h}
		tops[c] += h + rowGap
	}
	return out
}

// shortest returns the leftmost column with the smallest height.
func shortest(tops []int) int {
	c := 0
	for j := 1; j < len(tops); j++ {
		if tops[j] < tops[c] {
			c = j
		}
	}
	return c
}

func contentHeight(ps []placement) int {
	h := 0
	for _, p := range ps {
		h = max(h, p.top+p.rows)
	}
	return h
}

// lastVisible returns the highest item index whose card starts above
// bottom, or -1 if none does.
func lastVisible(ps []placement, bottom int) int {
	last := -1
	for i, p := range ps {
		if p.top < bottom {
			last = i
		}
	}
	return last
}

// renderCanvas draws the rows [scroll, scroll+height) of the layout. card
// must return exactly rows lines, each colWidth cells wide.
func renderCanvas(g grid, ps []placement, scroll, height int, card func(i, rows int) []string) string {
	if height <= 0 {
		return ""
	}
	blank := strings.Repeat(" ", g.colWidth)
	canvas := make([][]string, g.columns)
	for c := range canvas {
		canvas[c] = make([]string, height)
		for y := range canvas[c] {
			canvas[c][y] = blank
		}
	}
	for i, p := range ps {
		if p.top+p.rows <= scroll || p.top >= scroll+height || p.col >= g.columns {
			continue
		}
		for r, line := range card(i, p.rows) {
			y := p.top + r - scroll
			if y >= 0 && y < height {
				canvas[p.col][y] = line
			}
		}
	}

	gap := strings.Repeat(" ", g.gap)
	lines := make([]string, height)
	row := make([]string, g.columns)
	for y := range lines {
		for c := range canvas {
			row[c] = canvas[c][y]
		}
		lines[y] = strings.Join(row, gap)
	}
	return strings.Join(lines, "\n")
}

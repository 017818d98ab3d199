package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/go-cmp/cmp"

	"github.com/matheuskafuri/pinfeed/internal/cache"
	"github.com/matheuskafuri/pinfeed/internal/size"
)

func TestNewGrid(t *testing.T) {
	tests := []struct {
		width int
		want  grid
	}{
		{100, grid{columns: 3, colWidth: 31, gap: 3}},
		{66, grid{columns: 2, colWidth: 31, gap: 3}},
		{10, grid{columns: 1, colWidth: 10, gap: 3}},
	}
	for _, tt := range tests {
		if got := newGrid(tt.width, 236, 20); got != tt.want {
			t.Errorf("newGrid(%d) = %+v, want %+v", tt.width, got, tt.want)
		}
	}
}

func TestGridRows(t *testing.T) {
	g := grid{columns: 3, colWidth: 31, gap: 3}
	tests := []struct {
		s    size.LayoutSize
		want int
	}{
		{size.LayoutSize{Width: 236, Height: 340}, 22},
		{size.LayoutSize{Width: 472, Height: 680}, 22}, // same ratio, same height
		{size.LayoutSize{Width: 236, Height: 20}, minCardRows},
		{size.LayoutSize{}, minCardRows},
	}
	for _, tt := range tests {
		if got := g.rows(tt.s); got != tt.want {
			t.Errorf("rows(%v) = %d, want %d", tt.s, got, tt.want)
		}
	}
}

func TestMasonryShortestColumn(t *testing.T) {
	m := masonry{grid: grid{columns: 3, colWidth: 10, gap: 1}}
	got := m.layout([]int{10, 20, 5, 8, 4})
	want := []placement{
		{col: 0, top: 0, rows: 10},
		{col: 1, top: 0, rows: 20},
		{col: 2, top: 0, rows: 5},
		{col: 2, top: 6, rows: 8},
		{col: 0, top: 11, rows: 4},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(placement{})); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
	if h := contentHeight(got); h != 20 {
		t.Errorf("contentHeight = %d, want 20", h)
	}
}

func TestMasonryCorrectionKeepsColumns(t *testing.T) {
	m := masonry{grid: grid{columns: 2, colWidth: 10, gap: 1}}
	before := m.layout([]int{5, 5, 5, 5})

	// Item 0 grows after its real size arrives.
	after := m.layout([]int{30, 5, 5, 5})
	for i := range before {
		if before[i].col != after[i].col {
			t.Errorf("item %d moved from column %d to %d", i, before[i].col, after[i].col)
		}
	}
	if after[2].top != 31 {
		t.Errorf("item below the corrected card should shift to 31, got %d", after[2].top)
	}
	if after[1] != before[1] || after[3] != before[3] {
		t.Error("cards in other columns must not move")
	}

	m.reset(m.grid)
	if len(m.assigned) != 0 {
		t.Error("reset should forget column assignments")
	}
}

func TestLastVisible(t *testing.T) {
	ps := []placement{{0, 0, 10}, {1, 0, 20}, {0, 11, 10}, {0, 22, 10}}
	tests := []struct {
		bottom int
		want   int
	}{
		{0, -1},
		{5, 1},
		{12, 2},
		{100, 3},
	}
	for _, tt := range tests {
		if got := lastVisible(ps, tt.bottom); got != tt.want {
			t.Errorf("lastVisible(%d) = %d, want %d", tt.bottom, got, tt.want)
		}
	}
}

func TestRenderCanvas(t *testing.T) {
	g := grid{columns: 2, colWidth: 4, gap: 1}
	ps := []placement{{0, 0, 2}, {1, 1, 3}}
	card := func(i, rows int) []string {
		lines := make([]string, rows)
		for r := range lines {
			lines[r] = strings.Repeat(string(rune('a'+i)), 4)
		}
		return lines
	}
	got := renderCanvas(g, ps, 1, 3, card)
	want := "aaaa bbbb\n     bbbb\n     bbbb"
	if got != want {
		t.Errorf("renderCanvas =\n%q\nwant\n%q", got, want)
	}
	if renderCanvas(g, ps, 0, 0, card) != "" {
		t.Error("zero height canvas should be empty")
	}
}

func TestRenderCardDimensions(t *testing.T) {
	pin := cache.Pin{Key: "k", Title: "A very long title that will not fit in the card", Author: "Sarah Jenkins", Likes: 512}
	views := []cardView{
		{pin: pin, size: size.LayoutSize{Width: 236, Height: 340}, footer: true},
		{pin: pin, size: size.LayoutSize{Width: 236, Height: 300}},
		{pin: pin, size: size.LayoutSize{Width: 236, Height: 354}, pending: true},
		{pin: pin, size: size.LayoutSize{Width: 236, Height: 236}, fallback: true, selected: true},
		{skeleton: true},
	}
	for i, v := range views {
		for _, rows := range []int{4, 9, 22} {
			lines := renderCard(v, 31, rows)
			if len(lines) != rows {
				t.Fatalf("view %d: %d lines, want %d", i, len(lines), rows)
			}
			for n, line := range lines {
				if w := lipgloss.Width(line); w != 31 {
					t.Errorf("view %d rows %d line %d: width %d, want 31", i, rows, n, w)
				}
			}
		}
	}
}

func TestCardFooterShowsTitleAndLikes(t *testing.T) {
	pin := cache.Pin{Title: "Nebula", Author: "NASA", Likes: 340}
	out := strings.Join(renderCard(cardView{pin: pin, size: size.LayoutSize{Width: 236, Height: 340}, footer: true}, 31, 12), "\n")
	if !strings.Contains(out, "Nebula") || !strings.Contains(out, "♥ 340  NASA") {
		t.Errorf("footer missing title or likes:\n%s", out)
	}
	out = strings.Join(renderCard(cardView{pin: pin, size: size.LayoutSize{Width: 236, Height: 340}, pending: true}, 31, 12), "\n")
	if !strings.Contains(out, "measuring") {
		t.Errorf("pending card should say it is measuring:\n%s", out)
	}
}

func TestFitAndCenter(t *testing.T) {
	if got := fit("hello world", 8); got != "hello w…" {
		t.Errorf("fit = %q", got)
	}
	if got := fit("hi", 4); got != "hi  " {
		t.Errorf("fit pad = %q", got)
	}
	if got := fit("日本語テスト", 5); got != "日本…" {
		t.Errorf("fit wide = %q", got)
	}
	if got := center("ab", 8, '.'); got != ".. ab .." {
		t.Errorf("center = %q", got)
	}
}

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"github.com/matheuskafuri/pinfeed/internal/browser"
	"github.com/matheuskafuri/pinfeed/internal/cache"
	"github.com/matheuskafuri/pinfeed/internal/config"
	"github.com/matheuskafuri/pinfeed/internal/controller"
	"github.com/matheuskafuri/pinfeed/internal/session"
	"github.com/matheuskafuri/pinfeed/internal/size"
)

// Rows taken by the header, the detail line and the status bar.
const chromeRows = 3

type App struct {
	cfg  *config.Config
	sess *session.Session
	log  *log.Helper

	ctx    context.Context
	cancel context.CancelFunc

	width   int
	height  int
	grid    grid
	masonry masonry
	scroll  int
	cursor  int

	items    []cache.Pin
	state    controller.State
	loading  bool
	showHelp bool
	err      error
	spinner  spinner.Model
}

// RunOpts holds all parameters for launching the TUI.
type RunOpts struct {
	Cfg     *config.Config
	Session *session.Session
	Logger  log.Logger
}

func NewApp(opts RunOpts) *App {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	logger := opts.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:     opts.Cfg,
		sess:    opts.Session,
		log:     log.NewHelper(log.With(logger, "component", "tui")),
		ctx:     ctx,
		cancel:  cancel,
		spinner: sp,
		loading: true,
	}
}

func (a *App) Init() tea.Cmd {
	sess := a.sess
	ctx := a.ctx
	start := func() tea.Msg {
		err := sess.Start(ctx)
		return pageLoadedMsg{session: sess.ID(), err: err}
	}
	return tea.Batch(start, a.spinner.Tick)
}

func (a *App) loadMoreCmd(lastVisible int) tea.Cmd {
	ctrl := a.sess.Controller()
	id := a.sess.ID()
	ctx := a.ctx
	return func() tea.Msg {
		n, err := ctrl.MaybeLoadMore(ctx, lastVisible)
		return pageLoadedMsg{session: id, count: n, err: err}
	}
}

func (a *App) retryCmd() tea.Cmd {
	sess := a.sess
	ctrl := sess.Controller()
	id := sess.ID()
	ctx := a.ctx
	return func() tea.Msg {
		var (
			n   int
			err error
		)
		if ctrl.PageSize() == 0 {
			err = sess.Start(ctx)
		} else {
			n, err = ctrl.LoadMore(ctx)
		}
		return pageLoadedMsg{session: id, count: n, err: err}
	}
}

func (a *App) setModeCmd(mode string) tea.Cmd {
	sess := a.sess
	ctx := a.ctx
	return func() tea.Msg {
		err := sess.SetMode(ctx, mode)
		return modeChangedMsg{session: sess.ID(), err: err}
	}
}

func waitCmd(ctx context.Context, id uuid.UUID, res size.Resolution) tea.Cmd {
	return func() tea.Msg {
		if _, err := res.Wait(ctx); err != nil {
			return nil
		}
		return sizeResolvedMsg{session: id, key: res.Key}
	}
}

func openBrowserCmd(url string) tea.Cmd {
	return func() tea.Msg {
		err := browser.Open(url)
		if err != nil {
			return openErrMsg{err: err}
		}
		return nil
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		g := newGrid(a.width, a.cfg.ReferenceWidth(), a.cfg.Layout.Gap)
		if g != a.grid {
			a.grid = g
			a.masonry.reset(g)
		}
		a.clampScroll()
		return a, a.proximity()

	case tea.KeyMsg:
		return a.handleKey(msg)

	case pageLoadedMsg:
		if msg.session != a.sess.ID() {
			return a, nil
		}
		a.loading = false
		var ierr *controller.InvariantError
		switch {
		case errors.As(msg.err, &ierr):
			// The page was still appended minus the duplicates.
			a.log.Errorw("msg", "feed dropped duplicate pins", "keys", ierr.Keys)
		case msg.err != nil:
			a.err = msg.err
			a.log.Warnw("msg", "loading pins failed", "err", msg.err)
		}
		return a, tea.Batch(a.sync(), a.proximity())

	case modeChangedMsg:
		if msg.session != a.sess.ID() {
			return a, nil
		}
		a.loading = false
		a.clearFeed()
		if msg.err != nil {
			a.err = msg.err
			a.log.Warnw("msg", "switching mode failed", "mode", a.sess.Mode(), "err", msg.err)
		}
		return a, tea.Batch(a.sync(), a.proximity())

	case sizeResolvedMsg:
		// The view reads the corrected size from the resolver; only the
		// re-render matters here.
		return a, nil

	case openErrMsg:
		a.err = msg.err
		return a, nil

	case spinner.TickMsg:
		if a.loading || a.state == controller.Fetching {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	return a, nil
}

// sync pulls newly appended pins from the controller and starts resolving
// their sizes.
func (a *App) sync() tea.Cmd {
	snap := a.sess.Controller().Snapshot()
	from := len(a.items)
	if from > len(snap.Items) {
		from = 0
		a.masonry.reset(a.grid)
	}
	a.items = snap.Items
	a.state = snap.State

	id := a.sess.ID()
	var cmds []tea.Cmd
	for i := from; i < len(a.items); i++ {
		res := a.sess.Resolve(a.ctx, a.items[i], i)
		if res.Pending {
			cmds = append(cmds, waitCmd(a.ctx, id, res))
		}
	}
	return tea.Batch(cmds...)
}

func (a *App) clearFeed() {
	a.items = nil
	a.scroll = 0
	a.cursor = 0
	a.masonry.reset(a.grid)
}

// proximity asks the controller for the next page when the bottom of the
// viewport is close to the end of the feed. A failed load waits for an
// explicit retry instead of looping.
func (a *App) proximity() tea.Cmd {
	if a.loading || a.err != nil || a.width == 0 {
		return nil
	}
	ps, _ := a.layout()
	last := lastVisible(ps, a.scroll+a.viewHeight())
	if !a.sess.Controller().NearEnd(last) {
		return nil
	}
	a.loading = true
	return tea.Batch(a.loadMoreCmd(last), a.spinner.Tick)
}

func (a *App) viewHeight() int { return max(1, a.height-chromeRows) }

// layout resolves every visible pin to its latest size and places it.
func (a *App) layout() ([]placement, []cardView) {
	footer := a.sess.Mode() != config.ModeSimple
	views := make([]cardView, len(a.items))
	heights := make([]int, len(a.items))
	for i, pin := range a.items {
		res := a.sess.Resolve(a.ctx, pin, i)
		views[i] = cardView{
			pin:      pin,
			size:     res.Size,
			pending:  res.Pending,
			fallback: res.Fallback,
			selected: i == a.cursor,
			footer:   footer,
		}
		heights[i] = a.grid.rows(res.Size)
	}
	return a.masonry.layout(heights), views
}

func (a *App) clampScroll() {
	ps, _ := a.layout()
	limit := max(0, contentHeight(ps)-a.viewHeight())
	a.scroll = min(max(a.scroll, 0), limit)
}

func (a *App) ensureCursorVisible() {
	ps, _ := a.layout()
	if a.cursor < 0 || a.cursor >= len(ps) {
		return
	}
	p := ps[a.cursor]
	if p.top < a.scroll {
		a.scroll = p.top
	} else if p.top+p.rows > a.scroll+a.viewHeight() {
		a.scroll = p.top + p.rows - a.viewHeight()
	}
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		a.cancel()
		return a, tea.Quit
	}

	if a.showHelp {
		if msg.String() == "?" || msg.String() == "esc" {
			a.showHelp = false
		}
		return a, nil
	}

	switch msg.String() {
	case "?":
		a.showHelp = true
		return a, nil
	case "j", "down":
		a.scroll += 2
	case "k", "up":
		a.scroll -= 2
	case "pgdown", " ", "ctrl+d":
		a.scroll += a.viewHeight()
	case "pgup", "ctrl+u":
		a.scroll -= a.viewHeight()
	case "g", "home":
		a.scroll = 0
		a.cursor = 0
	case "G", "end":
		a.scroll = a.contentHeight()
		a.cursor = max(0, len(a.items)-1)
	case "n", "right", "tab":
		if a.cursor < len(a.items)-1 {
			a.cursor++
			a.ensureCursorVisible()
		}
	case "p", "left", "shift+tab":
		if a.cursor > 0 {
			a.cursor--
			a.ensureCursorVisible()
		}
	case "o", "enter":
		if a.cursor < len(a.items) {
			pin := a.items[a.cursor]
			link := pin.Link
			if link == "" {
				link = pin.Image
			}
			return a, openBrowserCmd(link)
		}
		return a, nil
	case "m":
		return a, a.switchMode(session.NextMode(a.sess.Mode()))
	case "1":
		return a, a.switchMode(config.ModeSimple)
	case "2":
		return a, a.switchMode(config.ModeCustom)
	case "3":
		return a, a.switchMode(config.ModeDirect)
	case "r":
		if a.err != nil && !a.loading {
			a.err = nil
			a.loading = true
			return a, tea.Batch(a.retryCmd(), a.spinner.Tick)
		}
		return a, nil
	default:
		return a, nil
	}

	a.clampScroll()
	return a, a.proximity()
}

func (a *App) contentHeight() int {
	ps, _ := a.layout()
	return contentHeight(ps)
}

func (a *App) switchMode(mode string) tea.Cmd {
	if mode == a.sess.Mode() {
		return nil
	}
	a.log.Infow("msg", "switching mode", "from", a.sess.Mode(), "to", mode)
	a.clearFeed()
	a.err = nil
	a.loading = true
	return tea.Batch(a.setModeCmd(mode), a.spinner.Tick)
}

func (a *App) View() string {
	if a.width == 0 {
		return lipgloss.NewStyle().Foreground(colorAccent).Render("  pinfeed")
	}
	if a.showHelp {
		return a.renderHelp()
	}

	header := a.renderHeader()
	height := a.viewHeight()

	var canvas string
	switch {
	case len(a.items) > 0:
		ps, views := a.layout()
		canvas = renderCanvas(a.grid, ps, a.scroll, height, func(i, rows int) []string {
			return renderCard(views[i], a.grid.colWidth, rows)
		})
	case a.loading || a.state == controller.Fetching:
		canvas = a.renderSkeletons(height)
	default:
		msg := "No pins"
		if a.err != nil {
			msg = "Could not load pins"
		}
		canvas = lipgloss.Place(a.width, height, lipgloss.Center, lipgloss.Center, helpDimStyle.Render(msg))
	}

	var selected *cache.Pin
	if a.cursor < len(a.items) {
		selected = &a.items[a.cursor]
	}

	st := status{
		pins:      len(a.items),
		mode:      a.sess.Mode(),
		state:     a.state,
		measuring: a.sess.Resolver().Pending(),
		err:       a.err,
	}
	if a.loading {
		st.state = controller.Fetching
	}
	bar := renderStatusBar(st, a.spinner.View(), a.width)

	return lipgloss.JoinVertical(lipgloss.Left, header, canvas, renderDetail(selected, a.width), bar)
}

func (a *App) renderHeader() string {
	left := headerStyle.Render("pinfeed")
	var tabs []string
	for i, m := range []string{config.ModeSimple, config.ModeCustom, config.ModeDirect} {
		label := fmt.Sprintf("%d %s", i+1, m)
		if m == a.sess.Mode() {
			tabs = append(tabs, tabActiveStyle.Render(label))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(label))
		}
	}
	right := strings.Join(tabs, " ")
	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return left + fmt.Sprintf("%*s", gap, "") + right
}

// renderSkeletons fills the viewport with placeholder cards while the first
// page is loading.
func (a *App) renderSkeletons(height int) string {
	sizes := a.sess.Placeholders().Skeletons(a.cfg.SkeletonCount())
	heights := make([]int, len(sizes))
	for i, s := range sizes {
		heights[i] = a.grid.rows(s)
	}
	m := masonry{grid: a.grid}
	ps := m.layout(heights)
	return renderCanvas(a.grid, ps, 0, height, func(i, rows int) []string {
		return renderCard(cardView{skeleton: true}, a.grid.colWidth, rows)
	})
}

// sizingRule describes how the current mode turns an image into a card size.
func sizingRule(mode string, footer, reference float64) string {
	adjusted := fmt.Sprintf("height = h + %g × (w / %g)", footer, reference)
	switch mode {
	case config.ModeCustom:
		return "measure the image, then " + adjusted
	case config.ModeDirect:
		return "use the declared size, then " + adjusted
	default:
		return "measure the image; height = h"
	}
}

func (a *App) renderHelp() string {
	title := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render("pinfeed")
	dim := helpDimStyle

	help := title + dim.Render(" · Keyboard Shortcuts") + "\n\n" +
		dim.Render("Navigation") + "\n" +
		"  j/k, ↑/↓      Scroll\n" +
		"  space, pgdn   Page down\n" +
		"  g/G           Top / bottom\n" +
		"  n/p, tab      Select next / previous pin\n\n" +
		dim.Render("Actions") + "\n" +
		"  o, enter      Open pin in browser\n" +
		"  m             Cycle sizing mode\n" +
		"  1/2/3         simple / custom / direct\n" +
		"  r             Retry after a failed load\n\n" +
		dim.Render("Sizing ("+a.sess.Mode()+")") + "\n" +
		"  " + helpCodeStyle.Render(sizingRule(a.sess.Mode(), a.cfg.Layout.FooterHeight, a.cfg.ReferenceWidth())) + "\n" +
		"  " + dim.Render(fmt.Sprintf("placeholders cycle %d ratios at width %g", a.sess.Placeholders().CycleLen(), a.cfg.ReferenceWidth())) + "\n\n" +
		dim.Render("General") + "\n" +
		"  ?             Toggle this help\n" +
		"  q, ctrl+c     Quit"

	card := helpCardStyle.Render(help)

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card)
}

// Run starts the TUI application.
func Run(opts RunOpts) error {
	app := NewApp(opts)
	defer app.cancel()
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/matheuskafuri/pinfeed/internal/cache"
	"github.com/matheuskafuri/pinfeed/internal/controller"
	"github.com/matheuskafuri/pinfeed/internal/session"
	"github.com/matheuskafuri/pinfeed/internal/size"
	"github.com/matheuskafuri/pinfeed/internal/source"
)

var (
	flagPages int
	flagWait  time.Duration
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Load pages through the feed controller and print the resolved card sizes",
	Long: `Load the first --pages pages the way the TUI does and print every pin with
its declared size and the card size the active mode resolves it to.

Measurements still pending after --wait are printed with their placeholder size.`,
	RunE: runPage,
}

func init() {
	pageCmd.Flags().IntVar(&flagPages, "pages", 1, "number of pages to load")
	pageCmd.Flags().DurationVar(&flagWait, "wait", 10*time.Second, "how long to wait for measurements")
}

var termGetSize = term.GetSize

func terminalWidth() int {
	w, _, err := termGetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 100
	}
	return w
}

func runPage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)

	var src source.PageSource
	if flagDemo > 0 {
		src = demoSource(flagDemo)
	} else {
		db, err := cache.Open(cfg.CatalogPath())
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}
		defer db.Close()
		if src, err = catalogOrDemo(cfg, db); err != nil {
			return err
		}
	}

	sess, err := session.New(cfg, src, size.NewHTTPProber(size.WithUserAgent(cfg.Measure.UserAgent)), logger)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	snap, err := loadPages(ctx, sess, flagPages)
	if err != nil {
		return err
	}

	rows := resolveAll(ctx, sess, snap.Items, flagWait)
	printPage(os.Stdout, rows, terminalWidth())
	fmt.Printf("\n%d pins · mode %s · next page %d · %s\n", len(snap.Items), sess.Mode(), snap.NextPage, snap.State)
	return nil
}

// loadPages starts the session and keeps loading until pages pages are in
// or the source runs out.
func loadPages(ctx context.Context, sess *session.Session, pages int) (controller.Snapshot, error) {
	if err := sess.Start(ctx); err != nil {
		return controller.Snapshot{}, err
	}
	ctrl := sess.Controller()
	for i := 1; i < pages && ctrl.State() != controller.Exhausted; i++ {
		if _, err := ctrl.LoadMore(ctx); err != nil {
			return controller.Snapshot{}, err
		}
	}
	return ctrl.Snapshot(), nil
}

type pageRow struct {
	slot     int
	key      string
	title    string
	declared string
	size     string
	note     string
}

// resolveAll resolves every pin and waits up to wait for pending measurements.
func resolveAll(ctx context.Context, sess *session.Session, pins []cache.Pin, wait time.Duration) []pageRow {
	res := make([]size.Resolution, len(pins))
	for i, p := range pins {
		res[i] = sess.Resolve(ctx, p, i)
	}

	wctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	rows := make([]pageRow, len(pins))
	for i, p := range pins {
		row := pageRow{slot: i, key: p.Key, title: p.Title, declared: "-"}
		if p.HasDeclaredSize() {
			row.declared = fmt.Sprintf("%dx%d", p.Width, p.Height)
		}
		out, err := res[i].Wait(wctx)
		switch {
		case err != nil:
			row.size = res[i].Size.String()
			row.note = "pending"
		case out.Fallback:
			row.size = out.Size.String()
			row.note = "fallback"
		default:
			row.size = out.Size.String()
		}
		rows[i] = row
	}
	return rows
}

func formatRow(r pageRow, width int) string {
	prefix := fmt.Sprintf("%4d  %-12s  %-10s  %-10s  %-8s  ",
		r.slot, runewidth.Truncate(r.key, 12, "…"), r.declared, r.size, r.note)
	rest := max(10, width-runewidth.StringWidth(prefix))
	return prefix + runewidth.Truncate(r.title, rest, "…")
}

func printPage(w io.Writer, rows []pageRow, width int) {
	header := fmt.Sprintf("%4s  %-12s  %-10s  %-10s  %-8s  %s", "slot", "key", "declared", "size", "", "title")
	fmt.Fprintln(w, header)
	for _, r := range rows {
		fmt.Fprintln(w, formatRow(r, width))
	}
}

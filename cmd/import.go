package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/pinfeed/internal/cache"
	"github.com/matheuskafuri/pinfeed/internal/config"
	"github.com/matheuskafuri/pinfeed/internal/feed"
)

const importTimeout = 30 * time.Second

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import pins from the configured feeds into the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := cache.Open(cfg.CatalogPath())
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}
		defer db.Close()

		n, errs := importFeeds(cmd.Context(), cfg, db)
		for _, e := range errs {
			fmt.Printf("  [warn] %v\n", e)
		}
		fmt.Printf("Imported %d pin(s) from %d source(s).\n", n, len(cfg.EnabledSources()))
		return nil
	},
}

// importFeeds fetches every enabled source and upserts the pins. Per-source
// failures are returned alongside the count, not as a fatal error.
func importFeeds(ctx context.Context, cfg *config.Config, db *cache.Cache) (int, []error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, importTimeout)
	defer cancel()

	result := feed.FetchAll(ctx, nil, cfg.EnabledSources())
	if err := db.UpsertPins(result.Pins); err != nil {
		return 0, append(result.Errors, fmt.Errorf("caching pins: %w", err))
	}
	if err := db.SetLastImport(); err != nil {
		return len(result.Pins), append(result.Errors, err)
	}
	return len(result.Pins), result.Errors
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	"github.com/matheuskafuri/pinfeed/internal/cache"
	"github.com/matheuskafuri/pinfeed/internal/config"
	"github.com/matheuskafuri/pinfeed/internal/session"
	"github.com/matheuskafuri/pinfeed/internal/size"
	"github.com/matheuskafuri/pinfeed/internal/source"
	"github.com/matheuskafuri/pinfeed/internal/tui"
)

// defaultDemoPins is used when the catalog is empty.
const defaultDemoPins = 200

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The alt screen owns stdout, so the log goes to a file.
	logPath := config.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer logFile.Close()
	logger := cfg.NewLogger(logFile)

	var src source.PageSource
	if flagDemo > 0 {
		src = demoSource(flagDemo)
	} else {
		db, err := cache.Open(cfg.CatalogPath())
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}
		defer db.Close()

		if flagImport || db.NeedsImport(cfg.ImportIntervalDuration()) {
			fmt.Println("Importing feeds...")
			n, errs := importFeeds(cmd.Context(), cfg, db)
			for _, e := range errs {
				fmt.Printf("  [warn] %v\n", e)
			}
			log.NewHelper(logger).Infow("msg", "import finished", "pins", n, "errors", len(errs))
		}

		src, err = catalogOrDemo(cfg, db)
		if err != nil {
			return err
		}
	}

	prober := size.NewHTTPProber(size.WithUserAgent(cfg.Measure.UserAgent))
	sess, err := session.New(cfg, src, prober, logger)
	if err != nil {
		return err
	}
	return tui.Run(tui.RunOpts{Cfg: cfg, Session: sess, Logger: logger})
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	switch flagMode {
	case "":
	case config.ModeSimple, config.ModeCustom, config.ModeDirect:
		cfg.Mode = flagMode
	default:
		return nil, fmt.Errorf("unknown --mode %q (want simple, custom or direct)", flagMode)
	}
	return cfg, nil
}

func demoSource(n int) *source.Memory {
	return source.NewMemory(source.Demo(n), source.WithLatency(flagLatency))
}

// catalogOrDemo serves the catalog restricted to enabled sources, or demo
// pins when it has nothing to show.
func catalogOrDemo(cfg *config.Config, db *cache.Cache) (source.PageSource, error) {
	var names []string
	for _, s := range cfg.EnabledSources() {
		names = append(names, s.Name)
	}
	count, err := db.Count(names)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		fmt.Fprintln(os.Stderr, "Catalog is empty; showing demo pins. Run `pinfeed import` to fill it.")
		return demoSource(defaultDemoPins), nil
	}
	return source.NewCatalog(db, names...), nil
}

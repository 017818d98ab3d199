package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matheuskafuri/pinfeed/internal/update"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagMode    string
	flagDemo    int
	flagLatency time.Duration
	flagImport  bool
)

var rootCmd = &cobra.Command{
	Use:   "pinfeed",
	Short: "Masonry image feed in the terminal",
	Long: `pinfeed pages through an image catalog as an infinite masonry feed.

Pins come from RSS/Atom media feeds imported into a local catalog, or from a
built-in demo set. Card sizes are measured from the images themselves, or taken
from the sizes the feed declares.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadDotEnv,
	RunE:              runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagMode, "mode", "", "sizing mode: simple, custom or direct")
	rootCmd.PersistentFlags().IntVar(&flagDemo, "demo", 0, "serve N generated demo pins instead of the catalog")
	rootCmd.PersistentFlags().DurationVar(&flagLatency, "latency", 600*time.Millisecond, "artificial page latency for --demo")
	rootCmd.Flags().BoolVar(&flagImport, "import", false, "import feeds before launching")

	versionCmd.Flags().BoolVar(&flagCheck, "check", false, "check GitHub for a newer release")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(pageCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadDotEnv reads PINFEED_* overrides from a .env file in the working
// directory, if there is one.
func loadDotEnv(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

var flagCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pinfeed %s (commit: %s, built: %s)\n", version, commit, date)
		if !flagCheck {
			return
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		printUpdate(os.Stdout, update.NewChecker().Check(ctx, version))
	},
}

func printUpdate(w io.Writer, r *update.Result) {
	if r == nil {
		fmt.Fprintln(w, "You are on the latest release.")
		return
	}
	fmt.Fprintf(w, "A newer release is available: %s\n", r.LatestVersion)
	if r.URL != "" {
		fmt.Fprintf(w, "  %s\n", r.URL)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/pinfeed/internal/config"
	"github.com/matheuskafuri/pinfeed/internal/size"
)

var probeCmd = &cobra.Command{
	Use:   "probe <image-url>...",
	Short: "Measure images and show the card size each mode would use",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		prober := size.NewHTTPProber(size.WithUserAgent(cfg.Measure.UserAgent))
		failed := 0
		for _, ref := range args {
			if err := probeOne(ctx, os.Stdout, cfg, prober, ref); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", ref, err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d image(s) could not be measured", failed, len(args))
		}
		return nil
	},
}

func probeOne(ctx context.Context, w io.Writer, cfg *config.Config, prober size.Prober, ref string) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.MeasureTimeoutDuration())
	defer cancel()

	natural, err := prober.Probe(ctx, ref)
	if err != nil {
		return err
	}
	refWidth := cfg.ReferenceWidth()
	adjusted := size.FooterAdjuster{Footer: cfg.Layout.FooterHeight, Reference: refWidth}.Adjust(natural)

	fmt.Fprintln(w, ref)
	fmt.Fprintf(w, "  natural   %s\n", natural)
	fmt.Fprintf(w, "  custom    %s\n", adjusted)
	fmt.Fprintf(w, "  at %g wide: image %.1f + footer %.1f\n",
		refWidth, natural.ScaleToWidth(refWidth), adjusted.ScaleToWidth(refWidth)-natural.ScaleToWidth(refWidth))
	return nil
}

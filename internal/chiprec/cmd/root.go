package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/erdnaxe/chiprec/internal/catalog"
	"github.com/erdnaxe/chiprec/internal/chiprec/log"
	"github.com/erdnaxe/chiprec/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "chiprec [firmware...]",
	Short: "Identify the microcontroller a Cortex-M firmware dump was built for",
	Long: `Chiprec recovers the memory-mapped peripheral registers a raw ARM
Cortex-M firmware image touches and matches them against a catalog of
known devices built from vendor SVD files.`,
	Example: `
# Identify a firmware dump against the default catalog
chiprec my-firmware-dump.bin

# Several dumps at once, machine-readable output
chiprec --json dump1.bin dump2.bin
  `,
	Args: cobra.MinimumNArgs(1),
	RunE: runIdentify,
}

func runIdentify(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	log.Setup(debug)

	dbPath, _ := cmd.Flags().GetString("db")
	jsonOut, _ := cmd.Flags().GetBool("json")
	scanLimit, _ := cmd.Flags().GetInt("scan-limit")

	cat, err := catalog.Open(dbPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	logger := logging.NewLogger()
	defer logger.Close()

	// Images are independent and the catalog is read-only here, so a
	// batch fans out; reports still print in argument order.
	reports := make([]*report, len(args))
	var g errgroup.Group
	g.SetLimit(4)
	for i, path := range args {
		g.Go(func() error {
			reports[i] = identify(cat, path, scanLimit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	r := newRenderer(term.IsTerminal(os.Stdout.Fd()))
	for _, rep := range reports {
		for _, diag := range rep.Diagnostics {
			logger.Warn(diag, "file", rep.File)
		}
		if rep.Error != "" {
			logger.Error("analysis failed", "file", rep.File, "error", rep.Error)
		}
		r.render(os.Stdout, rep)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("db", "database.db", "Path to the device catalog database")
	rootCmd.Flags().Bool("json", false, "Emit reports as JSON")
	rootCmd.Flags().Int("scan-limit", 0, "Bound the forward dataflow scan, in halfwords (0 = unbounded)")
}

func Execute() {
	// Bypass fang's markdown rendering when output is being piped.
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

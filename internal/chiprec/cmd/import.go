package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/erdnaxe/chiprec/internal/catalog"
	"github.com/erdnaxe/chiprec/internal/logging"
	"github.com/erdnaxe/chiprec/internal/svd"
)

var importCmd = &cobra.Command{
	Use:   "import [svd...]",
	Short: "Import SVD files into the device catalog",
	Long: `Import parses System View Description files and adds their devices,
peripherals and registers to the catalog database. Importing a file
again is a no-op: duplicate rows are ignored, not duplicated.`,
	Example: `
# Import the whole cmsis-svd data set
chiprec import cmsis-svd-data/data/*/*.svd

# Import into a specific catalog
chiprec import --db stm32.db STM32F103.svd
  `,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")

		cat, err := catalog.Open(dbPath)
		if err != nil {
			return err
		}
		defer cat.Close()
		if err := cat.Init(); err != nil {
			return err
		}

		logger := logging.NewLogger()
		defer logger.Close()

		// One transaction per file: a malformed SVD only loses itself.
		imported := 0
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				logger.Error("cannot open SVD", "path", path, "error", err)
				continue
			}
			dev, warnings, err := svd.Parse(f, filepath.Base(path))
			f.Close()
			if err != nil {
				logger.Error("cannot parse SVD", "path", path, "error", err)
				continue
			}
			for _, warn := range warnings {
				logger.Warn(warn)
			}
			if err := cat.Import(dev); err != nil {
				logger.Error("cannot import SVD", "path", path, "error", err)
				continue
			}
			logger.Debug("imported device", "device", dev.Name, "vendor", dev.Vendor, "peripherals", len(dev.Peripherals))
			imported++
		}

		logger.Info("import finished", "imported", imported, "failed", len(args)-imported)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

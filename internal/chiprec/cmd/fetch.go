package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/erdnaxe/chiprec/internal/keil"
	"github.com/erdnaxe/chiprec/internal/logging"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download SVD files from the Keil pack index",
	Long: `Fetch downloads every non-deprecated vendor pack listed by the public
Keil index and extracts the SVD files they contain, one directory per
vendor. Already-downloaded packs are remembered and skipped on the
next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("out")

		logger := logging.NewLogger()
		defer logger.Close()

		ledger, err := keil.LoadLedger(filepath.Join(outDir, "downloaded_urls.txt"))
		if err != nil {
			return err
		}

		client := &keil.Client{}
		packs, err := client.Index()
		if err != nil {
			return err
		}
		logger.Info("fetched pack index", "packs", len(packs))

		for _, p := range packs {
			if ledger.Seen(p.URL) {
				continue
			}
			logger.Info("downloading pack", "vendor", p.Vendor, "url", p.URL)
			files, err := client.FetchPack(p, filepath.Join(outDir, p.Vendor))
			if err != nil {
				// A vendor serving a broken pack should not stop the run.
				logger.Error("pack download failed", "url", p.URL, "error", err)
				continue
			}
			logger.Info("extracted SVD files", "vendor", p.Vendor, "count", len(files))
			if err := ledger.Record(p.URL); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringP("out", "o", "keil-svd", "Directory to extract SVD files into")
	rootCmd.AddCommand(fetchCmd)
}

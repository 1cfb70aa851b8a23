package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

// ChiprecConfig represents configuration for the chiprec tool
type ChiprecConfig struct {
	Debug     bool   `json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
	Database  string `json:"database" jsonschema:"title=Database,description=Path to the device catalog database"`
	ScanLimit int    `json:"scanLimit" jsonschema:"title=Scan Limit,description=Bound on the forward dataflow scan in halfwords (0 = unbounded)"`
}

var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Generate JSON schema for configuration",
	Long:   "Generate JSON schema for the chiprec configuration",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		reflector := new(jsonschema.Reflector)
		bts, err := json.MarshalIndent(reflector.Reflect(&ChiprecConfig{}), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		fmt.Println(string(bts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/haivivi/crpairs/pkg/cli"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of job files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := cli.JobSchema()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		return cli.Output(append(data, '\n'), cli.OutputOptions{
			Format: cli.FormatRaw,
			File:   outputFile,
		})
	},
}

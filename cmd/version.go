package cmd

import (
	"fmt"

	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

var versionDoc = `Prints the version of the CLI tool.`

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of the CLI tool",
	Long:  versionDoc,
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		defer err2.Handle(&err)

		try.To1(fmt.Fprintln(cmd.OutOrStdout(), "findy-vcx", utils.Version))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

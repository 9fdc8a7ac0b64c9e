package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keyrelay",
	Short: "keyrelay relays authenticated sessions between applications",
	Long: `A session handoff service: forked sessions travel between applications as
encrypted payloads exchanged through one-time selectors, with the symmetric
key riding in the URL fragment and never touching the backend.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

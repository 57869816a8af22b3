package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/farol/cmd/gen"
)

var rootCmd = &cobra.Command{
	Use:   "farol",
	Short: "Farol is a small networked key/value store",
	Long: `Farol is a small networked key/value store speaking the RESP
wire protocol.`,
}

func init() {
	rootCmd.AddCommand(StartCmd)
	rootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

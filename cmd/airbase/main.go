package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "airbase",
	Short:         "Daikin AirBase control CLI",
	Long:          `A command line tool talking directly to Daikin AirBase (BRP15B61) wifi adapters on the local network.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

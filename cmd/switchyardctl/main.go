// Switchyardctl - operator CLI for the switchyard daemon
//
// Talks to a running switchyardd over HTTP. The bearer token comes from
// API_BEARER_TOKEN, or is prompted for interactively when unset.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/switchyard-lab/switchyard/pkg/version"
)

var (
	serverURL string
	jsonOut   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "switchyardctl",
		Short:         "Operator CLI for the testbed switch load balancer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8000", "Daemon base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Raw JSON output")

	rootCmd.AddCommand(
		newHealthCmd(),
		newMachinesCmd(),
		newReserveCmd(),
		newReleaseCmd(),
		newReloadCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("switchyardctl %s (%s)\n", version.Version, version.GitCommit)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

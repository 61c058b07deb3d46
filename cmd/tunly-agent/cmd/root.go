// Package cmd provides the CLI commands for the Tunly agent.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xReLogic/Tunly/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tunly-agent",
	Short: "Tunly agent - expose a local service through the Tunly gateway",
	Long: `tunly-agent dials a tunly-server gateway over a persistent duplex
connection, fetches or accepts a bearer credential, and dispatches each
relayed request to a local service, streaming the response back.

Configuration is layered flags > environment > config file > defaults.
Environment variable: TUNLY_TOKEN. A bare "token=..." line in config.txt
is accepted as a final fallback.

Commands:
  run         Connect to the gateway and start forwarding
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none; ./config.txt is read only for a token fallback)")
}

func initConfig() {
	config.InitAgentViper(cfgFile)
}

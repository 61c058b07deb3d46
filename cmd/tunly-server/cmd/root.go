// Package cmd provides the CLI commands for the Tunly gateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xReLogic/Tunly/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tunly-server",
	Short: "Tunly gateway - expose local services through a secure relay",
	Long: `tunly-server accepts HTTP traffic under /s/{sid} and relays each
request over a duplex channel to a connected tunly-agent, which dispatches
it to a local service and streams the response back.

Configuration is layered flags > environment > config file > defaults.
Environment variables: PORT, TUNLY_TOKEN, TUNLY_JWT_SECRET,
TUNLY_INTERNAL_KEY.

Commands:
  start       Start the gateway
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none)")
}

func initConfig() {
	config.InitGatewayViper(cfgFile)
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes, per the engine's documented CLI contract.
const (
	ExitCodeSuccess      = 0
	ExitCodeStartupError = 1
	ExitCodeInvalidArg   = 2
)

var rootCmd = &cobra.Command{
	Use:   "forgecore",
	Short: "Embeddable HTTP/WebSocket service framework with a pluggable addon engine",
	Long: `forgecore hosts a route-dispatching HTTP and WebSocket server and a
sandboxed addon engine that discovers, resolves and runs addon archives
against it.`,
	SilenceUsage: true,
}

// SetVersion injects the build version, set from main at link time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command. A flag that fails to parse exits with
// ExitCodeInvalidArg; every other failure, including a rejected
// positional argument or an unknown subcommand, exits with
// ExitCodeStartupError.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "forgecore version %s\n" .Version}}`)
	invalidFlag := false
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		invalidFlag = true
		return err
	})
	if err := rootCmd.Execute(); err != nil {
		if invalidFlag {
			os.Exit(ExitCodeInvalidArg)
		}
		os.Exit(ExitCodeStartupError)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAddonCmd())
	rootCmd.AddCommand(newRouteCmd())
	rootCmd.AddCommand(newVersionCmd())
}

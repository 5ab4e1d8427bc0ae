package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-mtkboot/bootloader"
	"github.com/moffa90/go-mtkboot/config"
)

var (
	configFlag  string
	verboseFlag bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if kind := bootloader.KindOf(err); kind != bootloader.KindUnknown {
			fmt.Fprintf(os.Stderr, "mtkboot: %s: %v\n", kind, err)
		} else {
			fmt.Fprintf(os.Stderr, "mtkboot: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mtkboot",
		Short:         "Bootstrap MediaTek devices through the boot ROM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(verboseFlag)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", config.DefaultPath, "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log every serial exchange")

	rootCmd.AddCommand(
		bootCmd(),
		simulateCmd(),
		planCmd(),
		portsCmd(),
		configCmd(),
	)
	return rootCmd
}

// configureLogging sets up zerolog for interactive use.
func configureLogging(verbose bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05.000",
	})

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/go-session-client/internal/config"
	"github.com/jrsteele09/go-session-client/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfg           config.Config
	flagLogLevel  string
	flagLogFormat string
	flagQuiet     bool

	logger zerolog.Logger
)

func newRootCmd() *cobra.Command {
	cfg = config.New()

	root := &cobra.Command{
		Use:   "sessionctl",
		Short: "Keep a storefront session alive from the command line",
		Long:  "sessionctl signs in to a storefront auth backend and silently refreshes the session until interrupted.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New(flagLogLevel, flagLogFormat)
			log.Logger = logger
			if !flagQuiet {
				displayAppname(cfg.GetAppName())
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", cfg.GetLogLevel(), "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", cfg.GetLogFormat(), "Log format (console, json)")
	root.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Skip the banner")

	root.AddCommand(
		newRunCmd(),
		newDevServerCmd(),
	)
	return root
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

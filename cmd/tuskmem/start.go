package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/sandevgo/tuskmem/pkg/srv"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the TuskMem services",
	Long:  `Starts storage, tools, the memory scheduler and the Telegram bot when enabled, then waits for a signal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting tuskmem")

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		if err := app.WithTelegram(ctx); err != nil {
			return err
		}

		services := app.Services()
		srv.StartServices(ctx, services)
		srv.ShutdownServices(ctx, services)

		logger.Info().Msg("tuskmem has been shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}

package main

import (
	"context"
	"os"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/service/ui"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/spf13/cobra"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "tuskmem",
	Short: "TuskMem, an assistant that remembers",
	Long:  `TuskMem is a personal agent that extracts long-term memories from your conversations.`,
}

func Execute() {
	CustomizeHelp(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	return log.NewContextWithLogger(ctx, debug || config.IsDebug())
}

func CustomizeHelp(cmd *cobra.Command) {
	cobra.AddTemplateFuncs(ui.TemplateFuncs())
	cmd.SetHelpTemplate(ui.HelpTemplate)
}

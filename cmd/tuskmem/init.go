package main

import (
	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/service/installer"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Create the runtime directory interactively",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		logger := log.FromCtx(ctx)

		state, err := installer.RunWizard()
		if err != nil {
			return err
		}

		runtimePath := config.GetRuntimePath()
		if err := installer.WriteRuntime(ctx, runtimePath, state, initForce); err != nil {
			return err
		}

		logger.Info().Str("path", runtimePath).Msg("initialized runtime directory")
		logger.Info().Msg("Setup complete! You can now run 'tuskmem start' or 'tuskmem chat'.")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

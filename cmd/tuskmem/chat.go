package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sandevgo/tuskmem/internal/transport/cli"
	"github.com/sandevgo/tuskmem/pkg/srv"
	"github.com/spf13/cobra"
)

var conversationID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}

		chat, err := cli.NewChat(app.Agent, app.Router, cli.ChatOptions{
			ConversationID: conversationID,
			HistoryFile:    filepath.Join(app.Config.GetRuntimePath(), "input_history"),
		})
		if err != nil {
			return err
		}

		svcCtx, cancel := context.WithCancel(ctx)
		services := app.Services()
		srv.StartServices(svcCtx, services)

		chatErr := chat.Run(ctx)

		cancel()
		srv.ShutdownServices(svcCtx, services)
		return chatErr
	},
}

func init() {
	chatCmd.Flags().StringVarP(&conversationID, "conversation", "c", cli.DefaultConversationID, "conversation id")
	rootCmd.AddCommand(chatCmd)
}

package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/ui"
	"github.com/sandevgo/tuskmem/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

var (
	memoriesUser   string
	memoriesForget bool
)

var memoriesCmd = &cobra.Command{
	Use:   "memories",
	Short: "List or forget stored memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		appCfg := config.NewAppConfig(ctx)
		user := memoriesUser
		if user == "" {
			chatCfg, err := config.LoadChatConfig(ctx, appCfg.GetProfilePath(), env.Options{})
			if err != nil {
				return err
			}
			user = chatCfg.UserID
		}

		db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
		if err != nil {
			return err
		}
		defer db.Close()
		repo := sqlite.NewMemoriesRepo(db)
		ns := core.UserNamespace(user)
		out := cmd.OutOrStdout()

		if memoriesForget {
			n, err := repo.Delete(ctx, ns)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "forgot %d memories of %s\n", n, user)
			return nil
		}

		items, err := repo.Search(ctx, ns)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ui.TitleStyle.Render(fmt.Sprintf("MEMORIES OF %s (%d)", user, len(items))))
		for _, it := range items {
			fmt.Fprintf(out, "%s %s %s\n",
				ui.FlagStyle.Render("["+it.Kind+"]"),
				it.Content,
				ui.DescStyle.Render(it.UpdatedAt.Local().Format("2006-01-02 15:04")))
		}
		return nil
	},
}

func init() {
	memoriesCmd.Flags().StringVarP(&memoriesUser, "user", "u", "", "user id (defaults to TUSK_USER_ID)")
	memoriesCmd.Flags().BoolVar(&memoriesForget, "forget", false, "delete the memories instead of listing them")
	rootCmd.AddCommand(memoriesCmd)
}

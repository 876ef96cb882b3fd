package cli

import (
	"fmt"

	"elearning-chatbot-be/internal/bootstrap"
	"elearning-chatbot-be/internal/config"
	"elearning-chatbot-be/pkg/database"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the chat and knowledge tables",
		Long: `Enable the pgvector extension and auto-migrate chat_sessions, chat_turns,
knowledge_collections and knowledge_items. Requires DB_CONNECTION_STRING.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.Database.Connection == "" {
				return fmt.Errorf("DB_CONNECTION_STRING is not set")
			}
			db, err := bootstrap.OpenDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)
			color.Green("Migration complete")
			return nil
		},
	}
}

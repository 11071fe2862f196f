package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/robocourier/control-plane/internal/adapters/persistence"
	"github.com/robocourier/control-plane/internal/infrastructure/config"
	"github.com/robocourier/control-plane/internal/infrastructure/database"
)

// NewMessagesCommand creates the messages command group
func NewMessagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Inspect the operator message log",
	}
	cmd.AddCommand(newMessagesListCommand())
	return cmd
}

func newMessagesListCommand() *cobra.Command {
	var robotID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent messages for a robot, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			db, err := database.NewConnection(&cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()

			loc, err := time.LoadLocation(cfg.Timezone)
			if err != nil {
				return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
			}

			repo := persistence.NewMessageRepository(db, loc)
			messages, err := repo.RecentByRobot(cmd.Context(), robotID, limit)
			if err != nil {
				return err
			}

			if len(messages) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no messages for %s\n", robotID)
				return nil
			}
			for _, m := range messages {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", m.MessageID, m.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&robotID, "robot", "", "Robot entity id")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum messages to show")
	_ = cmd.MarkFlagRequired("robot")

	return cmd
}

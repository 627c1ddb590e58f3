package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete ALL queued records (destructive)",
	Long: `Delete every record in the offline queue, synced and unsynced.

Records that have not been synchronized yet are lost permanently - the
backend will never see them. This is never done automatically; it exists for
wiping a device or recovering from a corrupt queue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := openQueue(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()

		pending, err := st.CountUnsynced(ctx)
		if err != nil {
			return err
		}

		if !force {
			title := "Delete all queued records?"
			if pending > 0 {
				title = fmt.Sprintf("Delete all queued records? %d unsynced record(s) will be LOST.", pending)
			}

			var confirmed bool
			err := huh.NewConfirm().
				Title(title).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Aborted")
				return nil
			}
		}

		removed, err := st.ClearAll(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Removed %d record(s)\n", removed)
		return nil
	},
}

func init() {
	clearCmd.Flags().Bool("force", false, "skip the confirmation prompt")
}

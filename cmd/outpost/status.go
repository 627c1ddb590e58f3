package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pocketerp/outpost/internal/status"
	"github.com/pocketerp/outpost/internal/store"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show offline queue status",
	Long: `Show how many records are waiting to sync and whether any of them
failed on their last attempt. With --verbose, pending records are listed
grouped by the day they were recorded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")

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

		snap, err := status.NewAggregator(st).Snapshot(ctx)
		if err != nil {
			return err
		}

		if snap.Pending == 0 {
			fmt.Println(okStyle.Render("✓") + " Queue empty, everything synced")
			return nil
		}

		fmt.Printf("%s %d record(s) waiting to sync\n", warnStyle.Render("●"), snap.Pending)
		if snap.HasErrors {
			fmt.Println(warnStyle.Render("!") + " Some records failed their last sync attempt")
		}

		if !verbose {
			return nil
		}

		recs, err := st.ListUnsynced(ctx)
		if err != nil {
			return err
		}

		byDay := make(map[string][]*store.PendingRecord)
		var days []string
		for _, rec := range recs {
			day := rec.CreatedAt.Local().Format("2006-01-02")
			if _, seen := byDay[day]; !seen {
				days = append(days, day)
			}
			byDay[day] = append(byDay[day], rec)
		}

		for _, day := range days {
			fmt.Printf("\n%s\n", dimStyle.Render(day))
			for _, rec := range byDay[day] {
				line := fmt.Sprintf("  %s  %-14s %s/%s", shortID(rec.ID), rec.RecordType, rec.Scope.CompanyID, rec.Scope.BranchID)
				fmt.Println(line)
				if rec.LastError != "" {
					fmt.Printf("    %s %s\n", warnStyle.Render("error:"), rec.LastError)
				}
			}
		}

		return nil
	},
}

// shortID abbreviates a record id for display. IDs are normally UUIDs, but
// anything shorter is shown as is rather than panicking on the slice.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func init() {
	statusCmd.Flags().BoolP("verbose", "v", false, "list pending records grouped by day")
}

package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/surge-downloader/coursedl/internal/config"
	"github.com/surge-downloader/coursedl/internal/engine/state"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"h"},
	Short:   "List previously retrieved items",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		state.Configure(filepath.Join(config.GetStateDir(), historyDBName))
		defer state.CloseDB()

		entries, err := state.ListDownloads(limit)
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No downloads recorded yet.")
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
			Headers("ID", "COURSE", "KIND", "TITLE", "SIZE", "COMPLETED").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		for _, e := range entries {
			t.Row(
				shortID(e.ID),
				e.CourseSlug,
				string(e.Kind),
				e.Title,
				formatBytes(e.Bytes),
				time.Unix(e.CompletedAt, 0).Format(time.DateTime),
			)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

var historyRmCmd = &cobra.Command{
	Use:   "rm <id-prefix>",
	Short: "Forget one history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state.Configure(filepath.Join(config.GetStateDir(), historyDBName))
		defer state.CloseDB()

		id, err := resolveHistoryID(args[0])
		if err != nil {
			return err
		}
		if err := state.RemoveFromMasterList(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of entries to show (0 for all)")
	historyCmd.AddCommand(historyRmCmd)
	rootCmd.AddCommand(historyCmd)
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shaycichocki/missionctl/internal/store"
	"github.com/shaycichocki/missionctl/pkg/models"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report recent mission state",
	Long: `Display the most recently started missions against the current
target repository: their status, stop reason, and accumulated cost.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 5, "Number of recent missions to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	repoPath, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := store.DefaultPath(repoPath)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No missions recorded here yet. Run 'missionctl run --backlog <file>' to start one.")
		return nil
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	missions, err := db.ListRecentMissions(statusLimit)
	if err != nil {
		return fmt.Errorf("list recent missions: %w", err)
	}
	if len(missions) == 0 {
		fmt.Println("No missions recorded here yet. Run 'missionctl run --backlog <file>' to start one.")
		return nil
	}

	for _, m := range missions {
		elapsed := time.Since(m.StartedAt).Round(time.Second)
		reason := string(m.StopReason)
		if reason == "" {
			reason = "-"
		}
		fmt.Printf("%s  %-9s  %-24s  $%.2f  %s ago\n", m.ID, statusColor(m.Status)(string(m.Status)), reason, m.TotalCostUSD, elapsed)
		if m.Objective != "" {
			fmt.Printf("    %s\n", m.Objective)
		}
	}
	return nil
}

func statusColor(s models.MissionStatus) func(format string, a ...interface{}) string {
	switch s {
	case models.MissionCompleted:
		return color.GreenString
	case models.MissionFailed:
		return color.RedString
	case models.MissionStopped:
		return color.YellowString
	default:
		return color.CyanString
	}
}

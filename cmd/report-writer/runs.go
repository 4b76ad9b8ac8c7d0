// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/report-writer/internal/archive"
	"github.com/pdiddy/report-writer/pkg/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived report runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store, err := archive.NewStore(types.ArchiveConfig{Dir: cfg.Archive.Dir})
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stdout, "No archived runs.")
			return nil
		}

		fmt.Fprintf(os.Stdout, "%-38s  %-40s  %-6s  %-7s  %s\n",
			"ID", "Topic", "Score", "Gates", "Finished")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
		for _, r := range runs {
			topic := r.Topic
			if len(topic) > 40 {
				topic = topic[:37] + "..."
			}
			fmt.Fprintf(os.Stdout, "%-38s  %-40s  %-6.2f  %2d/%-4d  %s\n",
				r.ID, topic, r.OverallScore, r.GatesPassed, r.GatesTotal, r.FinishedAt)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

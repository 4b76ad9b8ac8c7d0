// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/report-writer/internal/retrieval"
	"github.com/pdiddy/report-writer/internal/textgen"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources <topic>",
	Short: "Retrieve and rank sources for a topic",
	Long: `Sources runs the retrieval engine standalone: query fan-out across the
configured providers, deduplication, relevance scoring, and composite
ranking. Results are cached so a later write run reuses them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := strings.TrimSpace(args[0])
		if topic == "" {
			return fmt.Errorf("topic is empty")
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		noCache, _ := cmd.Flags().GetBool("no-cache")
		asJSON, _ := cmd.Flags().GetBool("json")
		topK, _ := cmd.Flags().GetInt("max-results")

		cfg := loadConfig()
		if topK > 0 {
			cfg.Retrieval.TopK = topK
		}

		ctx := cmd.Context()
		gen, err := textgen.NewGemini(ctx, cfg.AI.APIKey, cfg.Roles)
		if err != nil {
			return err
		}
		defer gen.Close()

		engine := buildEngine(gen, cfg, noCache, logger)
		sources, err := engine.Retrieve(ctx, topic)
		if err != nil {
			return err
		}

		if asJSON {
			return retrieval.FormatJSON(sources, os.Stdout)
		}
		retrieval.FormatTable(sources, os.Stdout)
		return nil
	},
}

func init() {
	sourcesCmd.Flags().Int("max-results", 0, "maximum number of sources to return")
	sourcesCmd.Flags().Bool("json", false, "output results as JSON")
	sourcesCmd.Flags().Bool("no-cache", false, "bypass the source cache")

	rootCmd.AddCommand(sourcesCmd)
}

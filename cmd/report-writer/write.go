// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/report-writer/internal/agents"
	"github.com/pdiddy/report-writer/internal/archive"
	"github.com/pdiddy/report-writer/internal/report"
	"github.com/pdiddy/report-writer/internal/workflow"
	"github.com/pdiddy/report-writer/pkg/types"
)

var writeCmd = &cobra.Command{
	Use:   "write <topic>",
	Short: "Write a sourced, cited report on a topic",
	Long: `Write runs the full pipeline for a topic: outline planning with critique,
per-section source retrieval with a feasibility gate, drafting, citation
formatting and verification, quality gating, and style checking. The
finished report is written to the output directory and the run is
archived.`,
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

		outputDir, _ := cmd.Flags().GetString("output-dir")
		noCache, _ := cmd.Flags().GetBool("no-cache")
		interactive, _ := cmd.Flags().GetBool("interactive")

		var approver workflow.Approver
		if interactive {
			approver = &consoleApprover{in: bufio.NewReader(os.Stdin), out: os.Stdout}
		}

		cfg := loadConfig()
		ctx := cmd.Context()

		machine, qp, gen, err := buildMachine(ctx, cfg, noCache, approver, logger)
		if err != nil {
			return err
		}
		defer gen.Close()

		state, err := machine.Run(ctx, topic)
		if err != nil {
			return fmt.Errorf("pipeline run: %w", err)
		}

		path, err := report.Save(outputDir, state)
		if err != nil {
			return err
		}
		fmt.Println(report.Assemble(state))
		fmt.Fprintf(os.Stderr, "Report written to %s\n", path)

		if qr := qp.Report(); qr != nil {
			fmt.Fprintf(os.Stderr, "Quality: %.2f (%d/%d gates) — %s\n",
				qr.OverallScore, qr.GatesPassed, qr.GatesTotal, qr.Recommendation)
			if err := archiveRun(ctx, cfg.Archive.Dir, qr, path); err != nil {
				logger.Warn("archiving run failed", zap.Error(err))
			}
		}
		return nil
	},
}

func archiveRun(ctx context.Context, dir string, qr *types.SystemQualityReport, path string) error {
	store, err := archive.NewStore(types.ArchiveConfig{Dir: dir})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveRun(ctx, qr, path); err != nil {
		return err
	}
	return store.ExportYAML(ctx)
}

// consoleApprover asks the operator for the final verdict on stdin.
type consoleApprover struct {
	in  *bufio.Reader
	out *os.File
}

// Review prints the report and reads a verdict line: an empty line or "y"
// approves, anything else becomes revision feedback.
func (a *consoleApprover) Review(ctx context.Context, topic, body string) (string, error) {
	fmt.Fprintf(a.out, "\n--- Report on %q ---\n%s\n--- end of report ---\n", topic, body)
	fmt.Fprint(a.out, "Approve? [Y/feedback]: ")

	line, err := a.in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading approval: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" || strings.EqualFold(line, "y") || strings.EqualFold(line, "yes") {
		return agents.FeedbackApproved, nil
	}
	return agents.FeedbackRevise + ": " + line, nil
}

func init() {
	writeCmd.Flags().String("output-dir", "output", "directory for finished reports")
	writeCmd.Flags().Bool("no-cache", false, "bypass the source cache")
	writeCmd.Flags().Bool("interactive", false, "review the report on the console before approval")

	rootCmd.AddCommand(writeCmd)
}

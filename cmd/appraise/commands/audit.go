package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/appraise/internal/audit"
	"github.com/FranksOps/appraise/internal/report"
	"github.com/FranksOps/appraise/internal/storage"
	"github.com/spf13/cobra"
)

var (
	auditSource  string
	auditBlocked bool
	auditSince   time.Duration
	auditLimit   int
	auditFormat  string
)

func init() {
	auditCmd.Flags().StringVar(&auditSource, "source", "", "only records for this source")
	auditCmd.Flags().BoolVar(&auditBlocked, "blocked", false, "only records that hit a bot wall")
	auditCmd.Flags().DurationVar(&auditSince, "since", 24*time.Hour, "how far back to look (0 for all)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 0, "maximum records to read (0 for all)")
	auditCmd.Flags().StringVarP(&auditFormat, "format", "f", "text", "output format: text, json, html")
	rootCmd.AddCommand(auditCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Summarises recorded upstream fetches: which sources fail or are blocked.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		backend, err := audit.Open(ctx, cfg.Audit.Driver, cfg.Audit.DSN)
		if err != nil {
			return err
		}
		if backend == nil {
			return errors.New("no audit store configured (set audit.driver or --audit-driver)")
		}
		defer backend.Close()

		filter := storage.Filter{Source: auditSource, Limit: auditLimit}
		if auditBlocked {
			filter.Blocked = &auditBlocked
		}
		if auditSince > 0 {
			since := time.Now().Add(-auditSince)
			filter.Since = &since
		}

		records, err := backend.Query(ctx, filter)
		if err != nil {
			return fmt.Errorf("query audit store: %w", err)
		}
		summary := report.GenerateSummary(records)

		w := cmd.OutOrStdout()
		switch auditFormat {
		case "text":
			return report.WriteText(w, summary)
		case "json":
			return report.WriteJSON(w, summary)
		case "html":
			return report.WriteHTML(w, summary)
		default:
			return fmt.Errorf("unknown format %q", auditFormat)
		}
	},
}

package commands

import (
	"strings"

	"github.com/FranksOps/appraise/internal/market"
	"github.com/FranksOps/appraise/internal/report"
	"github.com/spf13/cobra"
)

var (
	queryFormat  string
	querySamples int
	queryStrict  bool
)

func init() {
	queryCmd.Flags().StringVarP(&queryFormat, "format", "f", report.FormatTable, "output format: table, json, html")
	queryCmd.Flags().IntVar(&querySamples, "samples", 3, "sample lines per source in table and html output")
	queryCmd.Flags().BoolVar(&queryStrict, "strict", false, "fail instead of printing the degraded fallback")
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query [terms...]",
	Short: "Runs one market lookup and prints the result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := newDeps(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer d.Close()

		q := market.NormalizeQuery(strings.Join(args, " "))
		var resp market.Response
		if queryStrict {
			resp, err = d.aggregator.Run(ctx, q)
			if err != nil {
				return err
			}
		} else {
			resp = d.aggregator.Respond(ctx, q)
		}
		return report.WriteMarket(cmd.OutOrStdout(), resp, queryFormat, querySamples)
	},
}

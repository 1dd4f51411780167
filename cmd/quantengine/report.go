package main

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/quantengine/internal/adapters/notify"
	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		days int
		mode string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the trade log and daily summaries from the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := domain.TradeMode(mode)
			if m != domain.ModePaper && m != domain.ModeLive {
				return fmt.Errorf("report: %w: mode %q must be paper or live", domain.ErrConfiguration, mode)
			}
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			to := time.Now().UTC()
			from := to.AddDate(0, 0, -days)
			trades, err := j.GetTrades(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			filtered := trades[:0]
			for _, t := range trades {
				if t.Mode == m {
					filtered = append(filtered, t)
				}
			}
			dailies, err := j.GetDailies(cmd.Context(), m)
			if err != nil {
				return err
			}
			notify.NewConsoleWriter(cmd.OutOrStdout(), a.verbose).PrintTradeReport(from, to, filtered, dailies)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "look-back window in days")
	cmd.Flags().StringVar(&mode, "mode", string(domain.ModePaper), "trade mode: paper|live")
	return cmd
}

func newRunsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List stored backtest runs, or show one by ID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			console := notify.NewConsoleWriter(cmd.OutOrStdout(), a.verbose)
			if len(args) == 1 {
				run, err := j.GetBacktestRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				console.PrintBacktest(run)
				return nil
			}
			runs, err := j.ListBacktestRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			console.PrintRuns(runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "runs to list")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration (file + env + defaults)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *a.cfg
			if cfg.Broker.BridgeToken != "" {
				cfg.Broker.BridgeToken = "***"
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

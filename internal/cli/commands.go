package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"spending/internal/amqp"
	"spending/internal/config"
	"spending/internal/core"
	"spending/internal/log"
)

type rootFlags struct {
	cfg    *config.Config
	logger *log.Logger
}

// NewRootCommand builds the spendingctl command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "spendingctl",
		Short:         "Federal spending reports from the command line",
		Long:          "Generate USAspending agency rankings, list report history and follow report events.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			flags.cfg = config.Load()
			if err := flags.cfg.Validate(); err != nil {
				return err
			}
			flags.logger = log.New(log.Config{
				Level:     flags.cfg.SlogLevel(),
				Component: log.ComponentCLI,
				Output:    cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	root.AddCommand(newReportCommand(flags), newHistoryCommand(flags), newEventsCommand(flags))
	return root
}

func newReportCommand(flags *rootFlags) *cobra.Command {
	var (
		fy      string
		quarter string
		noChart bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the highest and lowest spending agencies for a fiscal quarter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := core.NewPeriod(fy, quarter)
			if err != nil {
				return fmt.Errorf("--fy %q --quarter %q: %w", fy, quarter, err)
			}

			app, err := NewApp(cmd.Context(), flags.cfg, flags.logger, AppOptions{Chart: !noChart})
			if err != nil {
				return err
			}
			defer app.Close()

			rep, err := app.Reports.Generate(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderReport(rep))
			return nil
		},
	}
	cmd.Flags().StringVar(&fy, "fy", "", "Fiscal year, e.g. 2024")
	cmd.Flags().StringVarP(&quarter, "quarter", "q", "", "Fiscal quarter (1-4)")
	cmd.Flags().BoolVar(&noChart, "no-chart", false, "Skip rendering the chart PNG")
	_ = cmd.MarkFlagRequired("fy")
	_ = cmd.MarkFlagRequired("quarter")
	return cmd
}

func newHistoryCommand(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently generated reports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context(), flags.cfg, flags.logger, AppOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			items, err := app.Repo.RecentReports(cmd.Context(), limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(items))
			for _, it := range items {
				rows = append(rows, []string{
					"FY" + it.FiscalYear + " Q" + it.Quarter,
					humanize.Comma(int64(it.LastGroups)) + " agencies",
					humanize.Comma(int64(it.Runs)),
					humanize.Time(it.LastGenerated),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderTable(Table{
				Title:   "Recent reports",
				Headers: []string{"Period", "Groups", "Runs", "Last generated"},
				Rows:    rows,
			}))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of periods to show")
	return cmd
}

func newEventsCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Follow report.generated events until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !flags.cfg.AMQPEnabled() {
				return errors.New("AMQP_URL is not set")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := amqp.NewLazyClient(flags.cfg.AMQPURL, flags.cfg.AMQPExchange, flags.cfg.AMQPQueue)
			defer client.Close()

			flags.logger.WithComponent(log.ComponentAMQP).Info("Waiting for report events",
				"exchange", flags.cfg.AMQPExchange,
				"queue", flags.cfg.AMQPQueue)

			err := client.ConsumeReportEvents(ctx, func(msg *amqp.ReportGeneratedMessage) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), FormatEvent(msg))
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// FormatEvent renders one report event as a single line.
func FormatEvent(msg *amqp.ReportGeneratedMessage) string {
	line := fmt.Sprintf("%s  %s  top=%d bottom=%d",
		msg.GeneratedAt.Format("2006-01-02 15:04:05"), msg.Period(), len(msg.Top), len(msg.Bottom))
	if len(msg.Top) > 0 {
		line += fmt.Sprintf("  leader=%q %s", msg.Top[0].Name, FormatAmount(msg.Top[0].Total))
	}
	if msg.CacheHit {
		line += "  (cached)"
	}
	return line
}

package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/airchains-network/dualledger-harness/report"
)

// ReportCmd serves the journal of past runs without running anything.
var ReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Serve recorded runs over HTTP",
	Long: `Serve the journal over HTTP: GET /runs, GET /runs/:id and GET /runs/:id/operations.
The websocket feed at /ws stays idle since no run is active.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, dir, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := newLogger(cfg.LogLevel())
		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = cfg.Report.ListenAddr
		}

		j, err := openJournal(cfg, dir, log)
		if err != nil {
			return err
		}
		defer j.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		hub := report.NewHub(log)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			hub.Run(ctx)
			return nil
		})
		g.Go(func() error {
			return report.NewServer(j, hub, log).Start(ctx, listen)
		})
		return g.Wait()
	},
}

func init() {
	ReportCmd.Flags().String("listen", "", "Listen address (default from config)")
}

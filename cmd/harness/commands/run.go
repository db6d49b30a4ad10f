package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/airchains-network/dualledger-harness/eth"
	"github.com/airchains-network/dualledger-harness/journal"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/report"
	"github.com/airchains-network/dualledger-harness/scenario"
	"github.com/airchains-network/dualledger-harness/substrate"
)

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Run scenarios against the configured network",
	Long: `Run the named scenarios, or all of them, serially against the configured network.
Every submission and result is written to the journal. With --serve the report server
streams operations while the run is active.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, args)
	},
}

func init() {
	RunCmd.Flags().Bool("serve", false, "Serve the report API and live feed during the run")
	RunCmd.Flags().Int("connect-retries", 3, "Attempts to connect to the native ledger")
}

func dialSubstrate(url string, attempts int, log *logrus.Logger) (*substrate.Client, error) {
	var err error
	for i := 1; ; i++ {
		log.Infof("Attempting to connect to %s...", url)
		var client *substrate.Client
		client, err = substrate.Dial(url, log)
		if err == nil {
			log.Infof("Successfully connected to %s", url)
			return client, nil
		}
		if i >= attempts {
			break
		}
		log.Warnf("Failed to connect: %v", err)
		log.Info("Retrying in 5 seconds...")
		time.Sleep(5 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to native ledger: %v", err)
}

func runCommand(cmd *cobra.Command, args []string) error {
	serve, _ := cmd.Flags().GetBool("serve")
	retries, _ := cmd.Flags().GetInt("connect-retries")

	cfg, dir, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	log := newLogger(cfg.LogLevel())

	scenarios, err := scenario.Lookup(args...)
	if err != nil {
		return err
	}

	subURL, err := cfg.SubstrateURL()
	if err != nil {
		return err
	}
	ledger, err := dialSubstrate(subURL, retries, log)
	if err != nil {
		return err
	}
	defer ledger.Close()

	ethClient, err := eth.NewClient(cfg.Endpoints.EthRPCURL, log)
	if err != nil {
		return fmt.Errorf("failed to initialize EVM client: %v", err)
	}
	defer ethClient.Close()
	ethClient.SetPolling(cfg.PollInterval(), cfg.Waiter.Confirmations)

	admin, err := keys.FromURI(cfg.Admin.SecretURI)
	if err != nil {
		return fmt.Errorf("failed to load admin key: %v", err)
	}
	log.Infof("Administrative signer: %s", admin.Address())

	j, err := openJournal(cfg, dir, log)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := scenario.NewRunner(cfg, ethClient, ledger, admin, j, log)
	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()

	if serve {
		hub := report.NewHub(log)
		runner.SetPublisher(hub)
		g.Go(func() error {
			hub.Run(serveCtx)
			return nil
		})
		g.Go(func() error {
			return report.NewServer(j, hub, log).Start(serveCtx, cfg.Report.ListenAddr)
		})
	}

	var run *journal.Run
	g.Go(func() error {
		defer stopServing()
		var err error
		run, _, err = runner.Run(gctx, scenarios)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	log.Infof("Run %s finished: %s", run.ID, run.Status)
	if run.Status != journal.RunPassed {
		return fmt.Errorf("run %s failed", run.ID)
	}
	return nil
}

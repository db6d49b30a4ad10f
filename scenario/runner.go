package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/airchains-network/dualledger-harness/config"
	"github.com/airchains-network/dualledger-harness/eth"
	"github.com/airchains-network/dualledger-harness/journal"
	"github.com/airchains-network/dualledger-harness/keys"
	"github.com/airchains-network/dualledger-harness/subtensor"
	"github.com/airchains-network/dualledger-harness/waiter"
)

// Publisher receives live updates during a run.
type Publisher interface {
	waiter.Recorder
	PublishResult(r journal.Result) error
}

// Runner executes scenarios serially against one pair of ledger clients.
type Runner struct {
	cfg       config.Config
	log       *logrus.Logger
	eth       *eth.Client
	ledger    subtensor.Ledger
	adminKey  *keys.Keypair
	journal   *journal.Journal
	publisher Publisher
}

func NewRunner(cfg config.Config, ethClient *eth.Client, ledger subtensor.Ledger, adminKey *keys.Keypair, j *journal.Journal, log *logrus.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		log:      log,
		eth:      ethClient,
		ledger:   ledger,
		adminKey: adminKey,
		journal:  j,
	}
}

// SetPublisher streams operations and results of subsequent runs to p.
func (r *Runner) SetPublisher(p Publisher) {
	r.publisher = p
}

func (r *Runner) newEnv(runID string) (*Env, error) {
	terminal, err := r.cfg.Terminal()
	if err != nil {
		return nil, err
	}
	maxFee, err := r.cfg.MaxFee()
	if err != nil {
		return nil, err
	}
	addrs, err := AddressesFromConfig(r.cfg.Contracts)
	if err != nil {
		return nil, err
	}

	opts := []waiter.Option{
		waiter.WithTimeout(r.cfg.Timeout()),
		waiter.WithTerminal(terminal...),
		waiter.WithRecorder(r.journal.Recorder(runID)),
	}
	if r.publisher != nil {
		opts = append(opts, waiter.WithRecorder(r.publisher))
	}
	w := waiter.New(r.log, opts...)

	return &Env{
		Config:    r.cfg,
		Log:       r.log,
		Eth:       r.eth,
		Ledger:    r.ledger,
		Admin:     subtensor.NewAdmin(r.ledger, r.adminKey, w, maxFee, r.log),
		Waiter:    w,
		Addresses: addrs,
		MaxFee:    maxFee,
		RunID:     runID,
		journal:   r.journal,
	}, nil
}

// Run executes scenarios in order and records a run. A failing scenario does not stop the run;
// the run is marked failed when any scenario failed.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (*journal.Run, []journal.Result, error) {
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	run, err := r.journal.StartRun(r.cfg.General.Network, names)
	if err != nil {
		return nil, nil, err
	}
	env, err := r.newEnv(run.ID)
	if err != nil {
		_ = r.journal.FinishRun(run.ID, journal.RunFailed)
		return nil, nil, err
	}

	r.log.Infof("Run %s: %d scenario(s) on %s", run.ID, len(scenarios), r.cfg.General.Network)
	status := journal.RunPassed
	results := make([]journal.Result, 0, len(scenarios))
	for i, s := range scenarios {
		if ctx.Err() != nil {
			status = journal.RunFailed
			results = append(results, r.record(journal.Result{RunID: run.ID, Index: i, Scenario: s.Name, Skipped: true, Error: ctx.Err().Error()}))
			continue
		}
		res := r.runOne(ctx, env, i, s)
		if !res.Passed {
			status = journal.RunFailed
		}
		results = append(results, r.record(res))
	}

	if err := r.journal.FinishRun(run.ID, status); err != nil {
		return nil, results, err
	}
	final, err := r.journal.Run(run.ID)
	if err != nil {
		return nil, results, err
	}
	return final, results, nil
}

func (r *Runner) runOne(ctx context.Context, env *Env, index int, s Scenario) journal.Result {
	log := r.log.WithField("scenario", s.Name)
	res := journal.Result{RunID: env.RunID, Index: index, Scenario: s.Name, StartedAt: time.Now().UTC()}
	before, countErr := env.Submissions()
	if countErr != nil {
		log.Warnf("Failed to count submissions, result will report none: %v", countErr)
	}

	log.Info("Running")
	err := safeRun(ctx, env, s)
	res.Duration = time.Since(res.StartedAt)
	if countErr == nil {
		if after, cerr := env.Submissions(); cerr != nil {
			log.Warnf("Failed to count submissions: %v", cerr)
		} else {
			res.Submissions = after - before
		}
	}

	if err != nil {
		res.Error = err.Error()
		log.Errorf("Failed after %s: %v", res.Duration.Round(time.Millisecond), err)
		return res
	}
	res.Passed = true
	log.Infof("Passed in %s with %d submission(s)", res.Duration.Round(time.Millisecond), res.Submissions)
	return res
}

func safeRun(ctx context.Context, env *Env, s Scenario) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return s.Run(ctx, env)
}

func (r *Runner) record(res journal.Result) journal.Result {
	if err := r.journal.SaveResult(res); err != nil {
		r.log.Errorf("Failed to save result of %s: %v", res.Scenario, err)
	}
	if r.publisher != nil {
		if err := r.publisher.PublishResult(res); err != nil {
			r.log.Warnf("Failed to publish result of %s: %v", res.Scenario, err)
		}
	}
	return res
}

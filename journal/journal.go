package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/dualledger-harness/internal/db"
	"github.com/airchains-network/dualledger-harness/waiter"
)

// ErrNotFound is returned for unknown run ids.
var ErrNotFound = errors.New("not found")

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunPassed  RunStatus = "passed"
	RunFailed  RunStatus = "failed"
)

// Run is one invocation of the scenario runner.
type Run struct {
	ID         string    `json:"id"`
	Network    string    `json:"network"`
	Scenarios  []string  `json:"scenarios"`
	Status     RunStatus `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Result is the outcome of one scenario within a run.
type Result struct {
	RunID       string        `json:"run_id"`
	Index       int           `json:"index"`
	Scenario    string        `json:"scenario"`
	Passed      bool          `json:"passed"`
	Skipped     bool          `json:"skipped,omitempty"`
	Error       string        `json:"error,omitempty"`
	Submissions int           `json:"submissions"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// Journal persists runs, scenario results and pending operations.
type Journal struct {
	db  db.DB
	log *logrus.Logger
	mu  sync.Mutex
}

func New(store db.DB, log *logrus.Logger) *Journal {
	return &Journal{db: store, log: log}
}

// Open opens a LevelDB backed journal at path.
func Open(path string, log *logrus.Logger) (*Journal, error) {
	store, err := db.NewLevelDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal at %s: %w", path, err)
	}
	return New(store, log), nil
}

// OpenMemory opens a journal that lives only in memory.
func OpenMemory(log *logrus.Logger) (*Journal, error) {
	store, err := db.NewMemLevelDB()
	if err != nil {
		return nil, fmt.Errorf("failed to open memory journal: %w", err)
	}
	return New(store, log), nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func runKey(id string) []byte { return []byte("run/" + id) }

func resultKey(runID string, index int) []byte {
	return []byte(fmt.Sprintf("result/%s/%04d", runID, index))
}

func opPrefix(runID string) []byte { return []byte("op/" + runID + "/") }

func opKey(op waiter.PendingOperation) []byte {
	return []byte(fmt.Sprintf("op/%s/%020d/%s", op.RunID, op.SubmittedAt.UnixNano(), op.ID))
}

func (j *Journal) put(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return j.db.Put(key, data)
}

// StartRun records a new running run.
func (j *Journal) StartRun(network string, scenarios []string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Network:   network,
		Scenarios: scenarios,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := j.put(runKey(run.ID), run); err != nil {
		return nil, err
	}
	j.log.Debugf("Started run %s", run.ID)
	return run, nil
}

// FinishRun marks a run passed or failed.
func (j *Journal) FinishRun(id string, status RunStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	run, err := j.Run(id)
	if err != nil {
		return err
	}
	run.Status = status
	run.FinishedAt = time.Now().UTC()
	return j.put(runKey(id), run)
}

func (j *Journal) Run(id string) (*Run, error) {
	data, err := j.db.Get(runKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", id, err)
	}
	if data == nil {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return &run, nil
}

// Runs returns all runs, newest first.
func (j *Journal) Runs() ([]Run, error) {
	var (
		runs   []Run
		decErr error
	)
	err := j.db.Iterate([]byte("run/"), func(_, value []byte) bool {
		var run Run
		if decErr = json.Unmarshal(value, &run); decErr != nil {
			return false
		}
		runs = append(runs, run)
		return true
	})
	if err == nil {
		err = decErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	sort.Slice(runs, func(a, b int) bool { return runs[a].StartedAt.After(runs[b].StartedAt) })
	return runs, nil
}

func (j *Journal) SaveResult(r Result) error {
	return j.put(resultKey(r.RunID, r.Index), r)
}

// Results returns the results of a run in execution order.
func (j *Journal) Results(runID string) ([]Result, error) {
	var (
		results []Result
		decErr  error
	)
	err := j.db.Iterate([]byte("result/"+runID+"/"), func(_, value []byte) bool {
		var r Result
		if decErr = json.Unmarshal(value, &r); decErr != nil {
			return false
		}
		results = append(results, r)
		return true
	})
	if err == nil {
		err = decErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return results, nil
}

// Operations returns the pending operations of a run in submission order.
func (j *Journal) Operations(runID string) ([]waiter.PendingOperation, error) {
	var (
		ops    []waiter.PendingOperation
		decErr error
	)
	err := j.db.Iterate(opPrefix(runID), func(_, value []byte) bool {
		var op waiter.PendingOperation
		if decErr = json.Unmarshal(value, &op); decErr != nil {
			return false
		}
		ops = append(ops, op)
		return true
	})
	if err == nil {
		err = decErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return ops, nil
}

// Submissions counts the operations recorded for a run.
func (j *Journal) Submissions(runID string) (int, error) {
	n := 0
	err := j.db.Iterate(opPrefix(runID), func(_, _ []byte) bool {
		n++
		return true
	})
	return n, err
}

// Recorder returns a waiter.Recorder that files operations under runID.
func (j *Journal) Recorder(runID string) waiter.Recorder {
	return &runRecorder{j: j, runID: runID}
}

type runRecorder struct {
	j     *Journal
	runID string
}

func (r *runRecorder) RecordOperation(op waiter.PendingOperation) error {
	op.RunID = r.runID
	return r.j.put(opKey(op), op)
}

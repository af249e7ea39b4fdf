// Package jobs turns synchronous, blocking, failure-prone external process
// invocations into an asynchronous, observable, cancellable job abstraction.
//
// A Manager owns an in-memory registry of jobs. Submission is fire-and-forget:
// each job gets exactly one background worker goroutine that launches the
// external executable, streams its combined output into a log buffer, and
// finalizes the record. Queries (status, result, log, list) read snapshots and
// never block on running work. State is process-local by design; nothing is
// persisted across restarts.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the wall-clock ceiling applied to jobs that do not
	// specify their own. The wrapped procedures run minutes to hours; the
	// ceiling prevents indefinite resource retention by hung processes.
	DefaultTimeout = time.Hour

	// DefaultCancelGrace is how long a process gets to exit after SIGTERM
	// before SIGKILL is sent.
	DefaultCancelGrace = 5 * time.Second

	// killWait bounds the wait after SIGKILL before the manager detaches
	// from a process that refuses to die.
	killWait = 2 * time.Second

	// drainWait bounds the output drain after the process has exited. A
	// grandchild that inherited the pipe's write end keeps it open past the
	// parent's exit; without the bound the worker would block on EOF
	// indefinitely and the job would never finalize.
	drainWait = 2 * time.Second

	// errTailLines and errTailBytes bound the diagnostic excerpt captured
	// into a failed job's error.
	errTailLines = 20
	errTailBytes = 4096
)

// ResultCollector extracts a structured result from a completed procedure's
// output directory when the process printed no RESULT line. Implementations
// typically glob the directory into an artifact manifest; jobID identifies
// the owning job for collectors that stage artifacts elsewhere.
type ResultCollector interface {
	Collect(ctx context.Context, jobID, outputDir string) (map[string]any, error)
}

// Options configures a Manager. The zero value is usable.
type Options struct {
	// Logger receives structured worker lifecycle events. Defaults to
	// zap.NewNop().
	Logger *zap.Logger

	// DefaultTimeout overrides the wall-clock ceiling for jobs submitted
	// without one.
	DefaultTimeout time.Duration

	// CancelGrace overrides the SIGTERM grace period.
	CancelGrace time.Duration

	// Collector, when set, builds results for jobs that exit zero without
	// printing a RESULT line but have an output directory.
	Collector ResultCollector

	// OnTransition is invoked after every status transition with a fresh
	// snapshot. Used by the serving layer for metrics. Must not block.
	OnTransition func(Snapshot)
}

// Manager is the façade over the job registry.
//
// All methods are safe for concurrent use.
type Manager struct {
	opts   Options
	logger *zap.Logger

	mu    sync.RWMutex
	byID  map[string]*job
	order []*job

	wg sync.WaitGroup
}

// NewManager creates a Manager with the given options.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	if opts.CancelGrace <= 0 {
		opts.CancelGrace = DefaultCancelGrace
	}
	return &Manager{
		opts:   opts,
		logger: opts.Logger,
		byID:   make(map[string]*job),
	}
}

// SubmitSpec describes one unit of work.
type SubmitSpec struct {
	// Executable is the external program to run (required).
	Executable string

	// Script is an optional positional argument placed before the option
	// flags, used for interpreter plus script invocations.
	Script string

	// Args is a flat mapping of option names to scalar values, rendered
	// as "--key value" pairs in sorted order.
	Args map[string]string

	// Name is an optional display label. Defaults to the executable name.
	Name string

	// OutputDir, when set, is recorded on the command and used for result
	// manifest collection after a zero exit.
	OutputDir string

	// Timeout overrides the manager's default wall-clock ceiling.
	Timeout time.Duration
}

// Submit registers a new job and schedules its worker. It returns the job id
// immediately and never blocks on the underlying work.
func (m *Manager) Submit(spec SubmitSpec) (string, error) {
	exe := strings.TrimSpace(spec.Executable)
	if exe == "" {
		return "", fmt.Errorf("executable is required")
	}

	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = exe
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = m.opts.DefaultTimeout
	}

	cmd := Command{
		Executable: exe,
		Script:     strings.TrimSpace(spec.Script),
		Args:       spec.Args,
		OutputDir:  strings.TrimSpace(spec.OutputDir),
	}

	j := newJob(uuid.New().String(), name, cmd, timeout)

	m.mu.Lock()
	m.byID[j.id] = j
	m.order = append(m.order, j)
	m.mu.Unlock()

	m.logger.Info("job submitted",
		zap.String("job_id", j.id),
		zap.String("name", name),
		zap.String("command", cmd.String()))
	m.notify(j)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runJob(j)
	}()

	return j.id, nil
}

// Status returns a snapshot of the job. Fails with ErrNotFound for unknown
// ids.
func (m *Manager) Status(jobID string) (Snapshot, error) {
	j, err := m.lookup(jobID)
	if err != nil {
		return Snapshot{}, err
	}
	return j.snapshot(), nil
}

// Result returns the job's result or failure description. A non-terminal job
// yields Ready=false rather than blocking.
func (m *Manager) Result(jobID string) (ResultEnvelope, error) {
	j, err := m.lookup(jobID)
	if err != nil {
		return ResultEnvelope{}, err
	}
	return j.resultEnvelope(), nil
}

// Log returns captured output lines, oldest first. tail=0 returns the whole
// buffer. Safe to call while the job is still running.
func (m *Manager) Log(jobID string, tail int) (LogView, error) {
	j, err := m.lookup(jobID)
	if err != nil {
		return LogView{}, err
	}
	if tail < 0 {
		tail = 0
	}
	lines, truncated := j.log.Lines(tail)
	return LogView{
		JobID:      j.id,
		Lines:      lines,
		Truncated:  truncated,
		TotalLines: j.log.Len(),
	}, nil
}

// Cancel requests termination of the job and returns the resulting snapshot.
//
// A pending job transitions straight to cancelled without ever running. For a
// running job the call blocks until the process exits or the grace bound is
// exhausted, whichever comes first; on overrun the record is still marked
// cancelled and the (possibly still dying) process is detached. Cancelling a
// terminal job is a no-op returning the existing status.
func (m *Manager) Cancel(jobID string) (Snapshot, error) {
	j, err := m.lookup(jobID)
	if err != nil {
		return Snapshot{}, err
	}

	j.mu.Lock()
	switch {
	case j.status.Terminal():
		j.mu.Unlock()
		return j.snapshot(), nil

	case j.status == StatusPending:
		j.mu.Unlock()
		j.requestCancel()
		// Short-circuit the worker before it launches anything.
		if j.finalize(StatusCancelled, nil, &JobError{ExitCode: -1, Message: "cancelled before start"}) {
			m.logger.Info("job cancelled before start", zap.String("job_id", j.id))
			m.notify(j)
		}
		return j.snapshot(), nil
	}
	j.mu.Unlock()

	// Running: hand the stop request to the worker's termination path and
	// wait, bounded, for the terminal transition.
	j.requestCancel()

	wait := m.opts.CancelGrace + killWait + time.Second
	select {
	case <-j.doneCh:
	case <-time.After(wait):
		// The worker could not confirm process exit in time. Mark the
		// record cancelled anyway and detach ownership.
		if j.finalize(StatusCancelled, nil, &JobError{ExitCode: -1, Message: "cancelled; process did not confirm exit within bound"}) {
			m.logger.Warn("job cancelled without exit confirmation", zap.String("job_id", j.id))
			m.notify(j)
		}
	}
	return j.snapshot(), nil
}

// List returns snapshots of all jobs in insertion order, optionally filtered
// by one status value.
func (m *Manager) List(filter *Status) []Snapshot {
	m.mu.RLock()
	order := make([]*job, len(m.order))
	copy(order, m.order)
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(order))
	for _, j := range order {
		snap := j.snapshot()
		if filter != nil && snap.Status != *filter {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// Wait blocks until all workers have finished. Intended for shutdown and
// tests; it does not cancel anything.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) lookup(jobID string) (*job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, NotFoundError(jobID)
	}
	m.mu.RLock()
	j, ok := m.byID[jobID]
	m.mu.RUnlock()
	if !ok {
		return nil, NotFoundError(jobID)
	}
	return j, nil
}

func (m *Manager) notify(j *job) {
	if m.opts.OnTransition == nil {
		return
	}
	m.opts.OnTransition(j.snapshot())
}

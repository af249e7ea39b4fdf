package jobs

import (
	"os"
	"sync"
	"time"
)

// job is the registry entry for one unit of work.
//
// Mutable fields are guarded by mu. Exactly two actors ever write a given
// record: the submitting call (creation) and the job's own worker, with
// Cancel as the only cross-cutting writer and finalize as the single
// terminal-transition gate. The log buffer carries its own lock.
type job struct {
	id        string
	name      string
	command   Command
	createdAt time.Time
	timeout   time.Duration
	log       *LogBuffer

	mu         sync.Mutex
	status     Status
	startedAt  *time.Time
	finishedAt *time.Time
	result     map[string]any
	jobErr     *JobError

	// proc is the live process handle. Present only while running;
	// cleared unconditionally on every terminal transition.
	proc *os.Process

	cancelOnce sync.Once
	cancelCh   chan struct{} // closed when cancellation is requested
	doneCh     chan struct{} // closed on terminal transition
}

func newJob(id, name string, cmd Command, timeout time.Duration) *job {
	return &job{
		id:        id,
		name:      name,
		command:   cmd,
		createdAt: time.Now().UTC(),
		timeout:   timeout,
		log:       NewLogBuffer(),
		status:    StatusPending,
		cancelCh:  make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// snapshot copies the record under the lock.
func (j *job) snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	return Snapshot{
		ID:         j.id,
		Name:       j.name,
		Status:     j.status,
		Command:    j.command,
		CreatedAt:  j.createdAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
		Ready:      j.status.Terminal(),
	}
}

// requestCancel signals the worker's termination path. Idempotent.
func (j *job) requestCancel() {
	j.cancelOnce.Do(func() { close(j.cancelCh) })
}

// cancelRequested reports whether cancellation has been signalled.
func (j *job) cancelRequested() bool {
	select {
	case <-j.cancelCh:
		return true
	default:
		return false
	}
}

// markRunning transitions pending → running. Returns false when the job
// was already finalized (cancel-before-start); the worker must then exit
// without launching anything.
func (j *job) markRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status != StatusPending {
		return false
	}
	now := time.Now().UTC()
	j.status = StatusRunning
	j.startedAt = &now
	return true
}

// attachProcess records the live handle. Only the worker calls this.
func (j *job) attachProcess(p *os.Process) {
	j.mu.Lock()
	j.proc = p
	j.mu.Unlock()
}

// process returns the live handle, or nil once released.
func (j *job) process() *os.Process {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.proc
}

// finalize performs the terminal transition. The first caller wins;
// concurrent cancellation and completion resolve to exactly one terminal
// state. The process handle is released on every path.
func (j *job) finalize(status Status, result map[string]any, jobErr *JobError) bool {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return false
	}

	now := time.Now().UTC()
	j.status = status
	j.finishedAt = &now
	j.result = result
	j.jobErr = jobErr
	j.proc = nil
	j.mu.Unlock()

	close(j.doneCh)
	return true
}

// resultEnvelope builds the Result response under the lock.
func (j *job) resultEnvelope() ResultEnvelope {
	j.mu.Lock()
	defer j.mu.Unlock()

	env := ResultEnvelope{
		JobID:  j.id,
		Status: j.status,
		Ready:  j.status.Terminal(),
	}
	if !env.Ready {
		return env
	}
	if j.status == StatusCompleted {
		env.Result = j.result
	} else {
		env.Err = j.jobErr
	}
	return env
}

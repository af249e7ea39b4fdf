package jobs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// runJob is the execution worker: exactly one per submitted job. It owns the
// external process for the job's entire lifetime and is the only writer of
// the record after submission (Cancel only signals; terminal transitions
// race through finalize, first caller wins).
func (m *Manager) runJob(j *job) {
	// Cancel-before-start: the record was already finalized.
	if !j.markRunning() {
		return
	}
	log := m.logger.With(zap.String("job_id", j.id))
	log.Info("job started", zap.String("command", j.command.String()))
	m.notify(j)

	argv := j.command.Argv()
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = os.Environ()

	if dir := j.command.OutputDir; dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			m.failLaunch(j, log, fmt.Errorf("create output dir: %w", err))
			return
		}
	}

	// Combined stdout/stderr stream: the child writes both to one pipe so
	// callers observe interleaved output in arrival order.
	pr, pw, err := os.Pipe()
	if err != nil {
		m.failLaunch(j, log, fmt.Errorf("create output pipe: %w", err))
		return
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		m.failLaunch(j, log, fmt.Errorf("start %s: %w", j.command.Executable, err))
		return
	}
	// Close the parent's copy of the write end; the pump sees EOF once the
	// child exits.
	_ = pw.Close()
	j.attachProcess(cmd.Process)

	pumpDone := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(pumpDone)
		m.pumpOutput(j, pr, log)
		return nil
	})

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	timer := time.NewTimer(j.timeout)
	defer timer.Stop()

	var waitErr error
	exited := true
	outcome := outcomeExit

	select {
	case waitErr = <-waitCh:

	case <-j.cancelCh:
		outcome = outcomeCancel
		waitErr, exited = m.terminate(j, waitCh)

	case <-timer.C:
		outcome = outcomeTimeout
		waitErr, exited = m.terminate(j, waitCh)
	}

	if exited {
		// The pipe does not reach EOF while a grandchild holds the write
		// end open, so the drain is bounded. Past the bound the pipe is
		// closed under the pump and the job finalizes with whatever output
		// arrived.
		select {
		case <-pumpDone:
		case <-time.After(drainWait):
			_ = pr.Close()
		}
	} else {
		// Detach: stop the pump so the worker can finish even though the
		// process has not confirmed exit.
		_ = pr.Close()
	}
	_ = g.Wait()
	j.log.Flush()

	m.finish(j, log, outcome, waitErr, exited)
}

type outcome int

const (
	outcomeExit outcome = iota
	outcomeCancel
	outcomeTimeout
)

// finish performs the terminal transition for every exit path.
func (m *Manager) finish(j *job, log *zap.Logger, o outcome, waitErr error, exited bool) {
	code := exitCode(waitErr)

	switch o {
	case outcomeCancel:
		msg := "cancelled by request"
		if !exited {
			code = -1
			msg = "cancelled; process unresponsive, detached"
		}
		if j.finalize(StatusCancelled, nil, &JobError{ExitCode: code, Message: msg}) {
			log.Info("job cancelled", zap.Int("exit_code", code), zap.Bool("exited", exited))
			m.notify(j)
		}

	case outcomeTimeout:
		msg := fmt.Sprintf("timed out after %s", j.timeout)
		if tail := j.log.Tail(errTailLines, errTailBytes); tail != "" {
			msg += ": " + tail
		}
		if j.finalize(StatusFailed, nil, &JobError{ExitCode: code, Message: msg, Timeout: true}) {
			log.Warn("job timed out", zap.Duration("timeout", j.timeout), zap.Bool("exited", exited))
			m.notify(j)
		}

	default:
		if code == 0 {
			result := m.extractResult(j, log)
			if j.finalize(StatusCompleted, result, nil) {
				log.Info("job completed")
				m.notify(j)
			}
			return
		}
		msg := fmt.Sprintf("exited with code %d", code)
		if tail := j.log.Tail(errTailLines, errTailBytes); tail != "" {
			msg += ": " + tail
		}
		if j.finalize(StatusFailed, nil, &JobError{ExitCode: code, Message: msg}) {
			log.Warn("job failed", zap.Int("exit_code", code))
			m.notify(j)
		}
	}
}

// failLaunch finalizes a job whose process never existed. Launch failures
// are state-machine-identical to runtime failures but carry distinguishable
// error text.
func (m *Manager) failLaunch(j *job, log *zap.Logger, err error) {
	j.log.Flush()
	if j.finalize(StatusFailed, nil, &JobError{ExitCode: -1, Message: err.Error()}) {
		log.Warn("job launch failed", zap.Error(err))
		m.notify(j)
	}
}

// terminate escalates from graceful to forceful termination.
//
// Returns the wait result and whether the process confirmed exit within
// the grace + kill bound. On false the caller detaches: the record still
// reaches a terminal state and ownership of the dying process is dropped.
func (m *Manager) terminate(j *job, waitCh <-chan error) (error, bool) {
	// The process may have exited in the same instant the stop signal
	// arrived.
	select {
	case err := <-waitCh:
		return err, true
	default:
	}

	proc := j.process()
	if proc == nil {
		return nil, false
	}

	_ = proc.Signal(syscall.SIGTERM)
	select {
	case err := <-waitCh:
		return err, true
	case <-time.After(m.opts.CancelGrace):
	}

	_ = proc.Kill()
	select {
	case err := <-waitCh:
		return err, true
	case <-time.After(killWait):
		return nil, false
	}
}

// pumpOutput streams the combined output into the log buffer as it arrives
// so callers can observe partial progress. Progress logging is rate limited;
// long-running procedures can be extremely chatty.
func (m *Manager) pumpOutput(j *job, r io.Reader, log *zap.Logger) {
	lim := rate.NewLimiter(rate.Every(30*time.Second), 1)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			j.log.Append(string(buf[:n]))
			if lim.Allow() {
				log.Debug("job output", zap.Int("lines", j.log.Len()))
			}
		}
		if err != nil {
			return
		}
	}
}

// exitCode maps a wait error to a process exit code. -1 when no code is
// available.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

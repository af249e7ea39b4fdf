package jobs

import (
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle state of a managed job.
//
// Transitions form a strict DAG:
//
//	pending → running → {completed, failed, cancelled}
//	pending → cancelled   (cancel before the worker starts)
//
// Once a terminal status is reached no further transition occurs.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus validates a status string supplied by a caller (e.g. a list
// filter). Returns false for anything outside the known set.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, true
	case StatusRunning:
		return StatusRunning, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	case StatusCancelled:
		return StatusCancelled, true
	}
	return "", false
}

// Command is the resolved invocation for a job, recorded for auditability.
// It is immutable once the job is submitted.
type Command struct {
	// Executable is the program to run (absolute path or PATH-resolvable name).
	Executable string `json:"executable"`

	// Script is an optional positional argument placed before the option
	// flags, for interpreter invocations like "python3 script.py --in x".
	Script string `json:"script,omitempty"`

	// Args is the flat option map supplied at submission. Values are
	// scalars only; nested structures are rejected at submit time.
	Args map[string]string `json:"args,omitempty"`

	// OutputDir, when set, is where the procedure writes its artifacts.
	// Used for result manifest collection after a zero exit.
	OutputDir string `json:"output_dir,omitempty"`
}

// Argv renders the command as an argv slice: executable, the positional
// script when set, then "--key value" pairs in sorted key order for
// determinism.
func (c Command) Argv() []string {
	argv := make([]string, 0, 2+2*len(c.Args))
	argv = append(argv, c.Executable)
	if c.Script != "" {
		argv = append(argv, c.Script)
	}

	keys := make([]string, 0, len(c.Args))
	for k := range c.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		argv = append(argv, "--"+k, c.Args[k])
	}
	return argv
}

// String renders the command for display and audit logs.
func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// JobError describes why a job finished as failed or cancelled.
type JobError struct {
	// ExitCode is the process exit code. -1 when no process ever ran
	// (launch failure) or the code could not be determined.
	ExitCode int `json:"exit_code"`

	// Message is a bounded diagnostic excerpt: the launch error, the
	// timeout marker, or the tail of the combined output stream.
	Message string `json:"message"`

	// Timeout marks failures caused by the wall-clock ceiling.
	Timeout bool `json:"timeout,omitempty"`
}

func (e *JobError) Error() string {
	return e.Message
}

// Snapshot is a consistent point-in-time view of a job, safe to hand to
// concurrent callers. All fields are copies.
type Snapshot struct {
	ID         string     `json:"job_id"`
	Name       string     `json:"name,omitempty"`
	Status     Status     `json:"status"`
	Command    Command    `json:"command"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Ready indicates result/error retrieval will succeed (terminal only).
	Ready bool `json:"ready"`
}

// ResultEnvelope is returned by Manager.Result.
//
// Exactly one of Result and Err is set when Ready is true. A non-terminal
// job yields Ready=false with both unset; callers poll rather than block.
type ResultEnvelope struct {
	JobID  string         `json:"job_id"`
	Status Status         `json:"status"`
	Ready  bool           `json:"ready"`
	Result map[string]any `json:"result,omitempty"`
	Err    *JobError      `json:"error,omitempty"`
}

// LogView is returned by Manager.Log.
type LogView struct {
	JobID string   `json:"job_id"`
	Lines []string `json:"lines"`

	// Truncated is true when a tail limit dropped older lines.
	Truncated bool `json:"truncated"`

	// TotalLines is the full buffer length at read time.
	TotalLines int `json:"total_lines"`
}

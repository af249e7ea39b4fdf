package jobs

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// LogBuffer is an append-only, thread-safe capture of a process's combined
// output stream.
//
// The buffer is synchronized independently of the owning job record so that
// log reads never contend with status updates. Lines are never mutated or
// reordered after append: repeated reads during execution observe a
// monotonically growing, prefix-compatible sequence.
type LogBuffer struct {
	mu    sync.RWMutex
	lines []string

	// partial holds the trailing bytes of a chunk that did not end in a
	// newline. It is prepended to the next chunk.
	partial string
}

// NewLogBuffer returns an empty buffer.
func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

// Append adds a chunk of raw output. Chunks may contain zero or more line
// breaks; incomplete trailing lines are held back until completed by a
// later chunk or by Flush.
func (b *LogBuffer) Append(chunk string) {
	if chunk == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	data := b.partial + chunk
	for {
		idx := strings.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSuffix(data[:idx], "\r")
		b.lines = append(b.lines, line)
		data = data[idx+1:]
	}
	b.partial = data
}

// AppendLine adds one complete line.
func (b *LogBuffer) AppendLine(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
}

// Flush promotes any incomplete trailing line to a full line. Called by the
// worker once the process has exited so no output is lost.
func (b *LogBuffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.partial != "" {
		b.lines = append(b.lines, b.partial)
		b.partial = ""
	}
}

// Len returns the number of complete lines captured so far.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Lines returns captured lines, oldest first.
//
// tail=0 returns the entire buffer; otherwise at most the last tail lines
// are returned. The second result reports whether older lines were dropped
// by the tail limit. The returned slice is a copy and safe to retain.
func (b *LogBuffer) Lines(tail int) ([]string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	lines := b.lines
	truncated := false
	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
		truncated = true
	}

	out := make([]string, len(lines))
	copy(out, lines)
	return out, truncated
}

// Tail returns the last n lines joined with newlines, for diagnostic
// excerpts on failure. The result is bounded to maxBytes.
func (b *LogBuffer) Tail(n, maxBytes int) string {
	lines, _ := b.Lines(n)
	s := strings.Join(lines, "\n")
	if maxBytes > 0 && len(s) > maxBytes {
		start := len(s) - maxBytes
		// Advance to a rune boundary so the cut never splits a multibyte
		// sequence.
		for start < len(s) && !utf8.RuneStart(s[start]) {
			start++
		}
		s = s[start:]
	}
	return s
}

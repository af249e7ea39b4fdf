package jobs

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
)

// resultPrefix marks the structured result line a procedure prints on its
// final output. Everything after the prefix must be a JSON object.
const resultPrefix = "RESULT:"

// collectTimeout bounds the artifact manifest scan after a zero exit.
const collectTimeout = 30 * time.Second

// extractResult builds the opaque result payload for a job that exited zero.
//
// Priority order:
//  1. The last RESULT: line in the captured output, parsed as JSON.
//  2. An artifact manifest of the output directory, when one was given and
//     a collector is configured.
//  3. A minimal summary, so a completed job never has a nil result.
func (m *Manager) extractResult(j *job, log *zap.Logger) map[string]any {
	lines, _ := j.log.Lines(0)
	for i := len(lines) - 1; i >= 0; i-- {
		rest, ok := strings.CutPrefix(strings.TrimSpace(lines[i]), resultPrefix)
		if !ok {
			continue
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(rest)), &out); err != nil {
			log.Warn("unparseable RESULT line", zap.Error(err))
			break
		}
		return out
	}

	if dir := j.command.OutputDir; dir != "" && m.opts.Collector != nil {
		ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
		defer cancel()

		manifest, err := m.opts.Collector.Collect(ctx, j.id, dir)
		if err != nil {
			log.Warn("artifact collection failed", zap.String("output_dir", dir), zap.Error(err))
		} else if manifest != nil {
			return manifest
		}
	}

	return map[string]any{
		"status":    "completed",
		"log_lines": j.log.Len(),
	}
}

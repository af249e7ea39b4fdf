// Package artifact turns a procedure's output directory into a structured
// result manifest, and optionally stages the collected files to S3.
package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPatterns covers the file types the wrapped design procedures
// produce: structure models and their score/metadata sidecars.
var DefaultPatterns = []string{
	"**/*.pdb",
	"**/*.cif",
	"**/*.json",
	"**/*.fasta",
	"**/*.npz",
}

// Artifact describes one produced file, relative to the output directory.
type Artifact struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Collector builds result manifests by globbing an output directory.
//
// The zero value uses DefaultPatterns.
type Collector struct {
	// Patterns are doublestar globs evaluated relative to the output
	// directory.
	Patterns []string

	// MaxFiles caps the manifest size. Zero means no cap.
	MaxFiles int
}

// Collect scans dir and returns a manifest map suitable for use as an
// opaque job result:
//
//	{"output_dir": ..., "files": [...], "file_count": N}
//
// A missing directory is not an error; it yields an empty manifest. File
// paths in the manifest are relative to dir and sorted for determinism. The
// job id is unused here; it exists for collectors that key staged uploads.
func (c *Collector) Collect(ctx context.Context, _ string, dir string) (map[string]any, error) {
	patterns := c.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return map[string]any{"output_dir": dir, "files": []Artifact{}, "file_count": 0}, nil
		}
		return nil, fmt.Errorf("stat output dir: %w", err)
	}

	seen := make(map[string]struct{})
	var artifacts []Artifact

	fsys := os.DirFS(dir)
	for _, pattern := range patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}

		for _, rel := range matches {
			if _, dup := seen[rel]; dup {
				continue
			}
			info, err := fs.Stat(fsys, rel)
			if err != nil || info.IsDir() {
				continue
			}
			seen[rel] = struct{}{}
			artifacts = append(artifacts, Artifact{
				Path:     filepath.ToSlash(rel),
				Size:     info.Size(),
				Modified: info.ModTime().UTC(),
			})
		}
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Path < artifacts[j].Path
	})
	if c.MaxFiles > 0 && len(artifacts) > c.MaxFiles {
		artifacts = artifacts[:c.MaxFiles]
	}

	return map[string]any{
		"output_dir": dir,
		"files":      artifacts,
		"file_count": len(artifacts),
	}, nil
}

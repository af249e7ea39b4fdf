package procedure

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const depCheckTimeout = 15 * time.Second

// DepStatus is the verdict for one environment dependency.
type DepStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// Checker probes the host for the external tools the procedures need.
type Checker struct {
	// RFDRepoDir is the RFdiffusion2 checkout. The apptainer image is
	// expected under rf_diffusion/exec inside it.
	RFDRepoDir string

	// Python is the interpreter used for import probes. Defaults to python3.
	Python string
}

const rfdImageRelPath = "rf_diffusion/exec/bakerlab_rf_diffusion_aa.sif"

// Check probes a single named dependency.
func (c *Checker) Check(ctx context.Context, name string) DepStatus {
	switch name {
	case DepApptainer:
		return c.checkApptainer()
	case DepRFDRepo:
		return c.checkRFDRepo()
	case DepChaiLab:
		return c.checkPythonImport(ctx, "chai_lab")
	default:
		return DepStatus{Name: name, Available: false, Detail: "unknown dependency"}
	}
}

// CheckAll probes every dependency a catalog's procedures reference,
// deduplicated, in stable order.
func (c *Checker) CheckAll(ctx context.Context, cat *Catalog) []DepStatus {
	seen := map[string]bool{}
	var names []string
	for _, p := range cat.All() {
		for _, dep := range p.Requires {
			if !seen[dep] {
				seen[dep] = true
				names = append(names, dep)
			}
		}
	}
	out := make([]DepStatus, 0, len(names))
	for _, name := range names {
		out = append(out, c.Check(ctx, name))
	}
	return out
}

// Verify returns an error when any dependency of the named procedure is
// missing, listing what is absent.
func (c *Checker) Verify(ctx context.Context, p Procedure) error {
	var missing []string
	for _, dep := range p.Requires {
		st := c.Check(ctx, dep)
		if !st.Available {
			missing = append(missing, fmt.Sprintf("%s (%s)", st.Name, st.Detail))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("procedure %s has unmet dependencies: %v", p.Name, missing)
	}
	return nil
}

func (c *Checker) checkApptainer() DepStatus {
	for _, bin := range []string{"apptainer", "singularity"} {
		if path, err := exec.LookPath(bin); err == nil {
			return DepStatus{Name: DepApptainer, Available: true, Detail: path}
		}
	}
	return DepStatus{Name: DepApptainer, Available: false, Detail: "apptainer/singularity not found in PATH"}
}

func (c *Checker) checkRFDRepo() DepStatus {
	if c.RFDRepoDir == "" {
		return DepStatus{Name: DepRFDRepo, Available: false, Detail: "repo dir not configured"}
	}
	info, err := os.Stat(c.RFDRepoDir)
	if err != nil || !info.IsDir() {
		return DepStatus{Name: DepRFDRepo, Available: false, Detail: fmt.Sprintf("repo dir missing: %s", c.RFDRepoDir)}
	}
	image := filepath.Join(c.RFDRepoDir, filepath.FromSlash(rfdImageRelPath))
	if _, err := os.Stat(image); err != nil {
		return DepStatus{Name: DepRFDRepo, Available: false, Detail: fmt.Sprintf("container image missing: %s", image)}
	}
	return DepStatus{Name: DepRFDRepo, Available: true, Detail: c.RFDRepoDir}
}

func (c *Checker) checkPythonImport(ctx context.Context, module string) DepStatus {
	python := c.Python
	if python == "" {
		python = "python3"
	}
	ctx, cancel := context.WithTimeout(ctx, depCheckTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, python, "-c", fmt.Sprintf("import %s", module))
	if err := cmd.Run(); err != nil {
		return DepStatus{Name: module, Available: false, Detail: fmt.Sprintf("import failed via %s", python)}
	}
	return DepStatus{Name: module, Available: true, Detail: fmt.Sprintf("importable via %s", python)}
}

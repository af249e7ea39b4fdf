package procedure

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dependency names referenced by Procedure.Requires.
const (
	DepChaiLab   = "chai_lab"
	DepApptainer = "apptainer"
	DepRFDRepo   = "rfdf_repo"
)

// Catalog holds the known procedures by name.
type Catalog struct {
	// ScriptsDir is where relative script paths resolve. Empty leaves
	// them relative to the working directory.
	ScriptsDir string

	procedures map[string]Procedure
}

// Builtin returns the catalog of the three shipped design procedures with
// their standard defaults.
func Builtin(scriptsDir string) *Catalog {
	c := &Catalog{ScriptsDir: scriptsDir, procedures: map[string]Procedure{}}
	for _, p := range builtinProcedures() {
		c.procedures[p.Name] = p
	}
	return c
}

func builtinProcedures() []Procedure {
	return []Procedure{
		{
			Name:        "structure_prediction",
			Description: "Protein structure prediction from amino acid sequences (Chai-1)",
			Script:      "chai1_structure_prediction.py",
			Requires:    []string{DepChaiLab},
			Args: []ArgSpec{
				{Name: "sequence", Kind: ArgString, Help: "Single protein sequence (alternative to input)"},
				{Name: "input", Kind: ArgString, Help: "Path to FASTA file with sequences"},
				{Name: "output", Kind: ArgString, Help: "Directory to save results"},
				{Name: "recycles", Kind: ArgInt, Default: 3, Min: 1, Max: 10, Help: "Recycles for accuracy (1=fast, 3=standard, 5=high)"},
				{Name: "timesteps", Kind: ArgInt, Default: 200, Min: 10, Max: 1000, Help: "Timesteps (50=fast, 200=standard, 500=high)"},
			},
		},
		{
			Name:        "enzyme_scaffolding",
			Description: "Enzyme active-site scaffolding with atomic-level motifs (RFdiffusion2)",
			Script:      "enzyme_active_site_scaffolding.py",
			Requires:    []string{DepApptainer, DepRFDRepo},
			Args: []ArgSpec{
				{Name: "input", Kind: ArgString, Required: true, Help: "Path to enzyme PDB structure"},
				{Name: "ligands", Kind: ArgString, Default: "NAD,OXM", Help: "Ligand codes for the active site"},
				{Name: "contigs", Kind: ArgString, Help: "Contig specification (auto-generated if omitted)"},
				{Name: "num_designs", Kind: ArgInt, Default: 5, Min: 1, Max: 20, Help: "Number of designs to generate"},
				{Name: "output", Kind: ArgString, Help: "Directory to save results"},
			},
		},
		{
			Name:        "binder_design",
			Description: "Small molecule binder design (RFdiffusion2)",
			Script:      "small_molecule_binder.py",
			Requires:    []string{DepApptainer, DepRFDRepo},
			Args: []ArgSpec{
				{Name: "input", Kind: ArgString, Help: "Path to protein-ligand PDB structure"},
				{Name: "ligand", Kind: ArgString, Help: "Ligand code (e.g. PH2, ATP, NAD)"},
				{Name: "min_length", Kind: ArgInt, Default: 30, Min: 10, Max: 200, Help: "Minimum binder length"},
				{Name: "max_length", Kind: ArgInt, Default: 100, Min: 20, Max: 300, Help: "Maximum binder length"},
				{Name: "num_designs", Kind: ArgInt, Default: 3, Min: 1, Max: 20, Help: "Number of designs to generate"},
				{Name: "output", Kind: ArgString, Help: "Directory to save results"},
			},
		},
	}
}

// catalogFile is the on-disk catalog schema.
type catalogFile struct {
	ScriptsDir string      `yaml:"scripts_dir,omitempty" json:"scripts_dir,omitempty"`
	Procedures []Procedure `yaml:"procedures" json:"procedures"`
}

// Load reads a catalog from a YAML or JSON file. Format is determined by
// extension; unknown extensions try YAML first, then JSON.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("catalog file not found: %s", path)
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("catalog file is empty: %s", path)
	}

	var cf catalogFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("invalid JSON in catalog: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("invalid YAML in catalog: %w", err)
		}
	default:
		if yamlErr := yaml.Unmarshal(data, &cf); yamlErr != nil {
			if jsonErr := json.Unmarshal(data, &cf); jsonErr != nil {
				return nil, fmt.Errorf("failed to parse catalog (tried YAML and JSON): %w", yamlErr)
			}
		}
	}

	if len(cf.Procedures) == 0 {
		return nil, fmt.Errorf("catalog defines no procedures")
	}

	c := &Catalog{ScriptsDir: cf.ScriptsDir, procedures: map[string]Procedure{}}
	for _, p := range cf.Procedures {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("catalog procedure with empty name")
		}
		if strings.TrimSpace(p.Script) == "" {
			return nil, fmt.Errorf("procedure %s: script is required", p.Name)
		}
		if _, dup := c.procedures[p.Name]; dup {
			return nil, fmt.Errorf("duplicate procedure name: %s", p.Name)
		}
		c.procedures[p.Name] = p
	}
	return c, nil
}

// Get returns the named procedure.
func (c *Catalog) Get(name string) (Procedure, bool) {
	p, ok := c.procedures[strings.TrimSpace(name)]
	return p, ok
}

// Names lists procedure names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.procedures))
	for name := range c.procedures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the procedures sorted by name.
func (c *Catalog) All() []Procedure {
	out := make([]Procedure, 0, len(c.procedures))
	for _, name := range c.Names() {
		out = append(out, c.procedures[name])
	}
	return out
}

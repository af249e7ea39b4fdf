package procedure

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestBuiltinCatalog(t *testing.T) {
	cat := Builtin("/opt/scripts")

	want := []string{"binder_design", "enzyme_scaffolding", "structure_prediction"}
	if got := cat.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}

	p, ok := cat.Get("enzyme_scaffolding")
	if !ok {
		t.Fatal("enzyme_scaffolding not found")
	}
	interp, script := p.Executable(cat.ScriptsDir)
	if interp != "python3" {
		t.Errorf("interpreter = %q, want python3", interp)
	}
	if script != filepath.Join("/opt/scripts", "enzyme_active_site_scaffolding.py") {
		t.Errorf("unexpected script path %q", script)
	}

	if _, ok := cat.Get("no_such_procedure"); ok {
		t.Error("Get returned ok for unknown procedure")
	}
}

func TestCommonLigands(t *testing.T) {
	ligands := CommonLigands()
	if len(ligands) != 11 {
		t.Fatalf("len(CommonLigands()) = %d, want 11", len(ligands))
	}
	if ligands[0].Code != "PH2" || ligands[0].Name != "Phthalic acid" {
		t.Fatalf("unexpected first entry: %+v", ligands[0])
	}

	byCode := make(map[string]string, len(ligands))
	for _, l := range ligands {
		byCode[l.Code] = l.Name
	}
	if byCode["NAD"] != "Nicotinamide adenine dinucleotide" {
		t.Errorf("NAD = %q", byCode["NAD"])
	}
	if byCode["ZN"] != "Zinc ion" {
		t.Errorf("ZN = %q", byCode["ZN"])
	}

	// Callers get a copy; mutation must not leak into the table.
	ligands[0].Code = "XXX"
	if CommonLigands()[0].Code != "PH2" {
		t.Fatal("CommonLigands() exposed shared backing storage")
	}
}

func TestResolve_DefaultsAndCoercion(t *testing.T) {
	p, _ := Builtin("").Get("structure_prediction")

	got, err := p.Resolve(map[string]any{
		"sequence": "MKVL",
		"recycles": float64(5), // JSON numbers arrive as float64
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := map[string]string{
		"sequence":  "MKVL",
		"recycles":  "5",
		"timesteps": "200",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %v, want %v", got, want)
	}
}

func TestResolve_Validation(t *testing.T) {
	scaffolding, _ := Builtin("").Get("enzyme_scaffolding")
	prediction, _ := Builtin("").Get("structure_prediction")

	cases := []struct {
		name    string
		proc    Procedure
		args    map[string]any
		wantErr string
	}{
		{"missing required", scaffolding, map[string]any{}, "missing required argument"},
		{"unknown argument", scaffolding, map[string]any{"input": "a.pdb", "bogus": 1}, "unknown arguments"},
		{"nested value", scaffolding, map[string]any{"input": map[string]any{"path": "a.pdb"}}, "nested values"},
		{"out of range", scaffolding, map[string]any{"input": "a.pdb", "num_designs": 50}, "must be 1-20"},
		{"non-integer", prediction, map[string]any{"sequence": "MK", "recycles": "lots"}, "expected integer"},
		{"empty string", scaffolding, map[string]any{"input": "  "}, "empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.proc.Resolve(tc.args)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestResolve_NumericStringAccepted(t *testing.T) {
	p, _ := Builtin("").Get("binder_design")
	got, err := p.Resolve(map[string]any{"min_length": "40", "max_length": 120})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got["min_length"] != "40" || got["max_length"] != "120" {
		t.Errorf("unexpected lengths: %v", got)
	}
	if got["num_designs"] != "3" {
		t.Errorf("num_designs default = %q, want 3", got["num_designs"])
	}
}

func TestLoad_YAMLCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `scripts_dir: /srv/scripts
procedures:
  - name: relax
    description: Structure relaxation
    script: relax.py
    requires: [apptainer]
    args:
      - name: input
        kind: string
        required: true
      - name: cycles
        kind: int
        default: 2
        min: 1
        max: 8
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.ScriptsDir != "/srv/scripts" {
		t.Errorf("ScriptsDir = %q", cat.ScriptsDir)
	}
	p, ok := cat.Get("relax")
	if !ok {
		t.Fatal("relax not found")
	}
	opts, err := p.Resolve(map[string]any{"input": "x.pdb"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if opts["cycles"] != "2" {
		t.Errorf("cycles default = %q, want 2", opts["cycles"])
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	dup := filepath.Join(dir, "dup.yaml")
	os.WriteFile(dup, []byte("procedures:\n  - name: a\n    script: a.py\n  - name: a\n    script: b.py\n"), 0o644)
	if _, err := Load(dup); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate error, got %v", err)
	}

	noScript := filepath.Join(dir, "noscript.json")
	os.WriteFile(noScript, []byte(`{"procedures":[{"name":"a"}]}`), 0o644)
	if _, err := Load(noScript); err == nil || !strings.Contains(err.Error(), "script is required") {
		t.Errorf("expected script error, got %v", err)
	}
}

func TestChecker_RFDRepo(t *testing.T) {
	c := &Checker{}
	if st := c.checkRFDRepo(); st.Available {
		t.Error("unconfigured repo dir reported available")
	}

	dir := t.TempDir()
	c.RFDRepoDir = dir
	if st := c.checkRFDRepo(); st.Available {
		t.Error("repo without container image reported available")
	}

	image := filepath.Join(dir, filepath.FromSlash(rfdImageRelPath))
	if err := os.MkdirAll(filepath.Dir(image), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(image, []byte("sif"), 0o644); err != nil {
		t.Fatal(err)
	}
	st := c.checkRFDRepo()
	if !st.Available {
		t.Errorf("expected available, got %+v", st)
	}
}

func TestChecker_UnknownAndImportFailure(t *testing.T) {
	c := &Checker{Python: filepath.Join(t.TempDir(), "no-python")}
	ctx := context.Background()

	if st := c.Check(ctx, "quantum_widget"); st.Available {
		t.Error("unknown dependency reported available")
	}
	if st := c.Check(ctx, DepChaiLab); st.Available {
		t.Error("import via missing interpreter reported available")
	}
}

func TestChecker_VerifyReportsMissing(t *testing.T) {
	c := &Checker{Python: filepath.Join(t.TempDir(), "no-python")}
	p := Procedure{Name: "demo", Script: "demo.py", Requires: []string{DepChaiLab}}
	err := c.Verify(context.Background(), p)
	if err == nil || !strings.Contains(err.Error(), "unmet dependencies") {
		t.Errorf("expected unmet dependency error, got %v", err)
	}
}

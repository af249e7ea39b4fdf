package procedure

// Ligand pairs a PDB chemical component code with its common name. These are
// the codes accepted by the small-molecule binder procedure's ligands
// argument.
type Ligand struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CommonLigands returns the curated ligand table in display order. The
// returned slice is a copy and safe to retain.
func CommonLigands() []Ligand {
	out := make([]Ligand, len(commonLigands))
	copy(out, commonLigands)
	return out
}

var commonLigands = []Ligand{
	{Code: "PH2", Name: "Phthalic acid"},
	{Code: "NAD", Name: "Nicotinamide adenine dinucleotide"},
	{Code: "ATP", Name: "Adenosine triphosphate"},
	{Code: "GTP", Name: "Guanosine triphosphate"},
	{Code: "FAD", Name: "Flavin adenine dinucleotide"},
	{Code: "FMN", Name: "Flavin mononucleotide"},
	{Code: "HEM", Name: "Heme"},
	{Code: "ZN", Name: "Zinc ion"},
	{Code: "MG", Name: "Magnesium ion"},
	{Code: "CA", Name: "Calcium ion"},
	{Code: "FE", Name: "Iron ion"},
}

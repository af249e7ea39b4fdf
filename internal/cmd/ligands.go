package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var ligandsCmd = &cobra.Command{
	Use:   "ligands",
	Short: "List ligand codes accepted by the small-molecule binder procedure",
	RunE:  runLigands,
}

func init() {
	rootCmd.AddCommand(ligandsCmd)
	ligandsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runLigands(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	client := newAPIClient(flagServerURL)
	ligands, err := client.ligands(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ligands)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "CODE\tNAME")
	for _, l := range ligands {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", l.Code, l.Name)
	}
	return nil
}

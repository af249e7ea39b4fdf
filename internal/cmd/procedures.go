package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var proceduresCmd = &cobra.Command{
	Use:   "procedures",
	Short: "List the procedures a running server offers",
	RunE:  runProcedures,
}

func init() {
	rootCmd.AddCommand(proceduresCmd)
	proceduresCmd.Flags().Bool("json", false, "Output as JSON")
}

func runProcedures(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	client := newAPIClient(flagServerURL)
	procs, err := client.procedures(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(procs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "NAME\tDESCRIPTION\tREQUIRED ARGS")
	for _, p := range procs {
		required := ""
		for _, a := range p.Args {
			if a.Required {
				if required != "" {
					required += ","
				}
				required += a.Name
			}
		}
		if required == "" {
			required = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Description, required)
	}
	return nil
}

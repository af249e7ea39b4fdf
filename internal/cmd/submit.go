package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
)

var (
	submitArgs      []string
	submitName      string
	submitOutputDir string
	submitWait      bool
	submitJSON      bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <procedure>",
	Short: "Submit a design procedure as a background job",
	Long: `Submit a design procedure to a running server and print the job id.

Arguments are passed as repeated --arg key=value flags and validated
against the procedure's argument contract.

Examples:
  rfd2mcp submit structure_prediction --arg sequence=MKVLAAGG
  rfd2mcp submit enzyme_scaffolding --arg input=enzyme.pdb --arg num_designs=10
  rfd2mcp submit binder_design --arg input=complex.pdb --arg ligand=ATP --wait`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringArrayVar(&submitArgs, "arg", nil, "Procedure argument as key=value (repeatable)")
	submitCmd.Flags().StringVar(&submitName, "name", "", "Display name for the job")
	submitCmd.Flags().StringVar(&submitOutputDir, "output-dir", "", "Directory for procedure outputs")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "Block until the job reaches a terminal status")
	submitCmd.Flags().BoolVar(&submitJSON, "json", false, "Output as JSON")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	procName := strings.TrimSpace(args[0])

	procArgs := make(map[string]any, len(submitArgs))
	for _, raw := range submitArgs {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return exitError(foundry.ExitInvalidArgument, "Invalid --arg value",
				fmt.Errorf("expected key=value, got %q", raw))
		}
		procArgs[strings.TrimSpace(key)] = value
	}

	client := newAPIClient(flagServerURL)
	ctx := cmd.Context()

	jobID, err := client.submit(ctx, submitPayload{
		Procedure: procName,
		Args:      procArgs,
		Name:      submitName,
		OutputDir: submitOutputDir,
	})
	if err != nil {
		return err
	}

	if !submitWait {
		if submitJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]string{"job_id": jobID})
		}
		_, _ = fmt.Fprintf(os.Stdout, "job_id=%s\n", jobID)
		_, _ = fmt.Fprintf(os.Stdout, "Track it with: rfd2mcp jobs status %s\n", shortJobID(jobID))
		return nil
	}

	for {
		snap, err := client.jobStatus(ctx, jobID)
		if err != nil {
			return err
		}
		if snap.Status.Terminal() {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	env, err := client.jobResult(ctx, jobID)
	if err != nil {
		return err
	}

	if submitJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}

	_, _ = fmt.Fprintf(os.Stdout, "job_id=%s\n", env.JobID)
	_, _ = fmt.Fprintf(os.Stdout, "status=%s\n", env.Status)
	if env.Err != nil {
		_, _ = fmt.Fprintf(os.Stdout, "exit_code=%d\n", env.Err.ExitCode)
		_, _ = fmt.Fprintf(os.Stdout, "error=%s\n", env.Err.Message)
	}
	if env.Result != nil {
		out, _ := json.MarshalIndent(env.Result, "", "  ")
		_, _ = fmt.Fprintf(os.Stdout, "result=%s\n", out)
	}
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MacromNex/rfdiffusion2-mcp/pkg/jobs"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage jobs on a running server",
	Long: `Inspect and manage jobs on a running server.

This command group is designed to be agent-friendly:

- stable job ids with unique-prefix resolution
- predictable field names
- optional JSON output for machine parsing`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Show status for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsLogsCmd = &cobra.Command{
	Use:   "logs <job_id>",
	Short: "Show captured output for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsLogs,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job_id>",
	Short: "Cancel a pending or running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsLogsCmd)
	jobsCmd.AddCommand(jobsCancelCmd)

	jobsListCmd.Flags().Bool("json", false, "Output as JSON")
	jobsListCmd.Flags().String("status", "", "Filter by status: pending, running, completed, failed, cancelled")
	jobsStatusCmd.Flags().Bool("json", false, "Output as JSON")
	jobsLogsCmd.Flags().Int("tail", 200, "Show last N lines (0 = all)")
	jobsCancelCmd.Flags().Bool("json", false, "Output as JSON")
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	statusFilter, _ := cmd.Flags().GetString("status")

	client := newAPIClient(flagServerURL)
	snaps, err := client.listJobs(cmd.Context(), statusFilter)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "No jobs found")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snaps)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "JOB ID\tNAME\tSTATUS\tCREATED\tSTARTED\tFINISHED")
	for _, s := range snaps {
		name := s.Name
		if name == "" {
			name = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortJobID(s.ID),
			name,
			s.Status,
			s.CreatedAt.UTC().Format(time.RFC3339),
			formatOptionalTime(s.StartedAt),
			formatOptionalTime(s.FinishedAt),
		)
	}
	return nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	client := newAPIClient(flagServerURL)
	ctx := cmd.Context()

	jobID, err := client.resolveJobID(ctx, args[0])
	if err != nil {
		return err
	}
	snap, err := client.jobStatus(ctx, jobID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	printSnapshot(snap)
	if snap.Ready {
		env, err := client.jobResult(ctx, jobID)
		if err == nil && env.Result != nil {
			out, _ := json.MarshalIndent(env.Result, "", "  ")
			_, _ = fmt.Fprintf(os.Stdout, "result=%s\n", out)
		}
	}
	return nil
}

func printSnapshot(snap jobs.Snapshot) {
	_, _ = fmt.Fprintf(os.Stdout, "job_id=%s\n", snap.ID)
	if snap.Name != "" {
		_, _ = fmt.Fprintf(os.Stdout, "name=%s\n", snap.Name)
	}
	_, _ = fmt.Fprintf(os.Stdout, "status=%s\n", snap.Status)
	_, _ = fmt.Fprintf(os.Stdout, "command=%s\n", snap.Command.String())
	_, _ = fmt.Fprintf(os.Stdout, "created_at=%s\n", snap.CreatedAt.UTC().Format(time.RFC3339))
	if snap.StartedAt != nil {
		_, _ = fmt.Fprintf(os.Stdout, "started_at=%s\n", snap.StartedAt.UTC().Format(time.RFC3339))
	}
	if snap.FinishedAt != nil {
		_, _ = fmt.Fprintf(os.Stdout, "finished_at=%s\n", snap.FinishedAt.UTC().Format(time.RFC3339))
	}
}

func runJobsLogs(cmd *cobra.Command, args []string) error {
	tail, _ := cmd.Flags().GetInt("tail")
	if tail < 0 {
		return fmt.Errorf("tail must not be negative")
	}

	client := newAPIClient(flagServerURL)
	ctx := cmd.Context()

	jobID, err := client.resolveJobID(ctx, args[0])
	if err != nil {
		return err
	}
	view, err := client.jobLog(ctx, jobID, tail)
	if err != nil {
		return err
	}

	for _, line := range view.Lines {
		_, _ = fmt.Fprintln(os.Stdout, line)
	}
	if view.Truncated {
		_, _ = fmt.Fprintf(os.Stderr, "(showing last %d of %d lines)\n", len(view.Lines), view.TotalLines)
	}
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	client := newAPIClient(flagServerURL)
	ctx := cmd.Context()

	jobID, err := client.resolveJobID(ctx, args[0])
	if err != nil {
		return err
	}
	snap, err := client.cancelJob(ctx, jobID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	_, _ = fmt.Fprintf(os.Stdout, "job_id=%s\n", snap.ID)
	_, _ = fmt.Fprintf(os.Stdout, "status=%s\n", snap.Status)
	return nil
}

func shortJobID(jobID string) string {
	jobID = strings.TrimSpace(jobID)
	if len(jobID) <= 12 {
		return jobID
	}
	return jobID[:12]
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

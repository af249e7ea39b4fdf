package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MacromNex/rfdiffusion2-mcp/internal/config"
	apperrors "github.com/MacromNex/rfdiffusion2-mcp/internal/errors"
	"github.com/MacromNex/rfdiffusion2-mcp/internal/observability"
	"github.com/MacromNex/rfdiffusion2-mcp/pkg/procedure"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the procedure runtime environment and report
what is missing.

Examples:
  rfd2mcp doctor                # Full environment check`,
	Run: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) {
	log := observability.CLILogger
	log.Info("=== rfd2mcp doctor ===")
	log.Info("")
	log.Info("Running diagnostic checks...")
	log.Info("")

	cfg, err := config.Load(cmd.Context())
	if err != nil {
		apperrors.ExitWithCode(log, foundry.ExitInvalidArgument, "Cannot load configuration", err)
	}

	checker := &procedure.Checker{
		RFDRepoDir: cfg.Procedures.RFDRepoDir,
		Python:     cfg.Procedures.Python,
	}

	allChecks := true
	checkNum := 1
	totalChecks := 5

	// Check 1: Go runtime
	goVersion := runtime.Version()
	log.Info(fmt.Sprintf("[%d/%d] Checking Go version... ✅ %s", checkNum, totalChecks, goVersion),
		zap.String("go_version", goVersion))
	checkNum++

	// Check 2: apptainer/singularity
	st := checker.Check(cmd.Context(), procedure.DepApptainer)
	if st.Available {
		log.Info(fmt.Sprintf("[%d/%d] Checking apptainer... ✅ %s", checkNum, totalChecks, st.Detail))
	} else {
		log.Warn(fmt.Sprintf("[%d/%d] Checking apptainer... ⚠️  %s", checkNum, totalChecks, st.Detail))
		allChecks = false
	}
	checkNum++

	// Check 3: RFdiffusion2 checkout and container image
	st = checker.Check(cmd.Context(), procedure.DepRFDRepo)
	if st.Available {
		log.Info(fmt.Sprintf("[%d/%d] Checking RFdiffusion2 repo... ✅ %s", checkNum, totalChecks, st.Detail))
	} else {
		log.Warn(fmt.Sprintf("[%d/%d] Checking RFdiffusion2 repo... ⚠️  %s", checkNum, totalChecks, st.Detail),
			zap.String("hint", "set RFD2MCP_PROCEDURES_RFD_REPO_DIR to the checkout"))
		allChecks = false
	}
	checkNum++

	// Check 4: chai_lab importable
	st = checker.Check(cmd.Context(), procedure.DepChaiLab)
	if st.Available {
		log.Info(fmt.Sprintf("[%d/%d] Checking chai_lab... ✅ %s", checkNum, totalChecks, st.Detail))
	} else {
		log.Warn(fmt.Sprintf("[%d/%d] Checking chai_lab... ⚠️  %s", checkNum, totalChecks, st.Detail),
			zap.String("hint", "pip install chai_lab in the procedure environment"))
		allChecks = false
	}
	checkNum++

	// Check 5: scripts directory
	if info, err := os.Stat(cfg.Procedures.ScriptsDir); err == nil && info.IsDir() {
		log.Info(fmt.Sprintf("[%d/%d] Checking scripts dir... ✅ %s", checkNum, totalChecks, cfg.Procedures.ScriptsDir))
	} else {
		log.Warn(fmt.Sprintf("[%d/%d] Checking scripts dir... ⚠️  %s not found", checkNum, totalChecks, cfg.Procedures.ScriptsDir))
		allChecks = false
	}

	log.Info("")
	if allChecks {
		log.Info("All checks passed ✅")
	} else {
		log.Warn("Some checks failed. Procedures with unmet dependencies will be rejected at submission.")
	}
}

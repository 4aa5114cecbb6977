package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rohmanhakim/site-archiver/internal/cache"
)

var (
	doctorFix     bool
	doctorDryRun  bool
	doctorSession string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the session cache for integrity problems.",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "repair what can be repaired")
	doctorCmd.Flags().BoolVar(&doctorDryRun, "dry-run", false, "with --fix, report repairs without applying them")
	doctorCmd.Flags().StringVar(&doctorSession, "session", "", "only check this session")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	param := cache.DefaultDoctorParam()
	param.Fix = doctorFix
	param.DryRun = doctorDryRun

	diagnoses, err := maintenanceStore().Doctor(param)
	if err != nil {
		return err
	}

	healthy := 0
	for _, diagnosis := range diagnoses {
		if doctorSession != "" && diagnosis.SessionID != doctorSession {
			continue
		}
		if len(diagnosis.Issues) == 0 {
			healthy++
			continue
		}
		cmd.Printf("%s (%s):\n", diagnosis.SessionID, diagnosis.EffectiveStatus)
		for _, issue := range diagnosis.Issues {
			cmd.Printf("  %-20s %s\n", issue.Kind, issue.Detail)
		}
		for _, fixed := range diagnosis.Fixed {
			cmd.Printf("  fixed: %s\n", fixed)
		}
	}
	cmd.Printf("%d sessions healthy\n", healthy)
	return nil
}

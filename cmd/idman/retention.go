package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudsmiths/idman/pkg/retention"
)

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Enforce and inspect the backup retention policy",
}

var retentionEnforceCmd = &cobra.Command{
	Use:   "enforce",
	Short: "Delete backups that fall outside the retention policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		engine := retention.New(a.store, a.broker)
		result, err := engine.Enforce(cmd.Context(), a.profile.Retention, dryRun)
		if err != nil {
			return err
		}
		for _, w := range result.Warnings {
			fmt.Printf("  ! %s\n", w)
		}
		if dryRun {
			fmt.Printf("✓ Dry run: %d backups would be deleted\n", len(result.Deleted))
			for _, id := range result.Deleted {
				fmt.Printf("  - %s\n", id)
			}
			return nil
		}
		if !result.Success {
			for _, e := range result.Errors {
				fmt.Fprintf(os.Stderr, "  ✗ %s\n", e)
			}
			return fmt.Errorf("retention enforcement finished with %d errors", len(result.Errors))
		}
		fmt.Printf("✓ Retention enforced: %d backups deleted, %d bytes freed\n",
			len(result.Deleted), result.FreedBytes)
		return nil
	},
}

var retentionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage usage, limit alerts, and policy recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		engine := retention.New(a.store, a.broker)
		usage, err := engine.Usage()
		if err != nil {
			return err
		}

		fmt.Printf("Backups: %d (%d bytes)\n", usage.TotalCount, usage.TotalSizeBytes)
		for _, period := range retention.Periods {
			key := string(period)
			if usage.CountByPeriod[key] == 0 {
				continue
			}
			fmt.Printf("  %-8s %4d backups  %d bytes\n",
				key, usage.CountByPeriod[key], usage.SizeByPeriod[key])
		}
		if !usage.OldestBackup.IsZero() {
			fmt.Printf("Oldest: %s\n", usage.OldestBackup.Format(time.RFC3339))
			fmt.Printf("Newest: %s\n", usage.NewestBackup.Format(time.RFC3339))
		}

		if a.profile.StorageLimit != nil {
			limitAlerts := retention.CheckLimits(usage, *a.profile.StorageLimit)
			for _, alert := range limitAlerts {
				fmt.Printf("  [%s] %s\n      %s\n", alert.Level, alert.Message, alert.RecommendedAction)
			}
			for _, rec := range retention.Recommendations(a.profile.Retention, usage, limitAlerts) {
				fmt.Printf("  → %s\n", rec)
			}
		} else {
			for _, rec := range retention.Recommendations(a.profile.Retention, usage, nil) {
				fmt.Printf("  → %s\n", rec)
			}
		}
		return nil
	},
}

var retentionCompareCmd = &cobra.Command{
	Use:   "compare <source-backup-id> <target-backup-id>",
	Short: "Diff the resource counts of two backups",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		engine := retention.New(a.store, a.broker)
		comparison, err := engine.Compare(args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Printf("%-16s %8s %8s %8s %9s\n", "", "source", "target", "diff", "change")
		for _, kind := range []string{"users", "groups", "permission-sets", "assignments"} {
			diff := comparison.ResourceDiffs[kind]
			fmt.Printf("%-16s %8d %8d %+8d %8.1f%%\n",
				kind, diff.SourceCount, diff.TargetCount, diff.Difference, diff.PercentChange)
		}
		fmt.Printf("Similarity: %.1f%%\n", comparison.SimilarityScore*100)
		return nil
	},
}

func init() {
	retentionEnforceCmd.Flags().Bool("dry-run", false, "Report what would be deleted without deleting")

	retentionCmd.AddCommand(retentionEnforceCmd)
	retentionCmd.AddCommand(retentionStatusCmd)
	retentionCmd.AddCommand(retentionCompareCmd)
}

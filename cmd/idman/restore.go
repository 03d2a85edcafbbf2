package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudsmiths/idman/pkg/restore"
	"github.com/cloudsmiths/idman/pkg/types"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Replay a stored backup into the directory",
	Long: `Restore replays a backup in dependency order: users, then groups,
then permission sets, then assignments. Conflicts with existing
resources are handled according to --conflict-strategy. A failed run
rolls back the changes it already applied; rerunning with the same
--operation-id skips phases that completed before the failure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := restoreOptions(cmd)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		engine := restore.New(a.store, a.client, a.broker)
		defer engine.Close()
		engine.SetPrompter(restore.PrompterFunc(func(c restore.Conflict) types.ConflictStrategy {
			ok, err := confirm(fmt.Sprintf("%s %s already exists, overwrite?",
				c.ResourceType, c.Name))
			if err != nil || !ok {
				return types.ConflictSkip
			}
			return types.ConflictOverwrite
		}))

		if !opts.DryRun && !force {
			preview, err := engine.Preview(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			printRestorePreview(preview)
			ok, err := confirm("Proceed with restore?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted")
				return nil
			}
		}

		result, err := engine.Restore(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		for _, w := range result.Warnings {
			fmt.Printf("  ! %s\n", w)
		}
		if !result.Success {
			for _, e := range result.Errors {
				fmt.Fprintf(os.Stderr, "  ✗ %s\n", e)
			}
			if result.Rollback != nil {
				fmt.Fprintf(os.Stderr, "  %s\n", result.Rollback.Message)
			}
			return fmt.Errorf("restore %s failed", result.OperationID)
		}
		if result.DryRun {
			fmt.Printf("✓ Dry run complete: %d changes would be applied\n", len(result.Changes))
			return nil
		}
		fmt.Printf("✓ Restore %s complete: %d changes applied (%s)\n",
			result.OperationID, len(result.Changes), result.Duration.Round(10*time.Millisecond))
		return nil
	},
}

var restorePreviewCmd = &cobra.Command{
	Use:   "preview <backup-id>",
	Short: "Show what a restore would change, without writing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := restoreOptions(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		engine := restore.New(a.store, a.client, a.broker)
		defer engine.Close()

		preview, err := engine.Preview(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		printRestorePreview(preview)
		return nil
	},
}

var restoreValidateCmd = &cobra.Command{
	Use:   "validate <backup-id>",
	Short: "Check a backup for compatibility with the target instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetInstance, _ := cmd.Flags().GetString("target-instance")

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		engine := restore.New(a.store, a.client, a.broker)
		defer engine.Close()

		if targetInstance == "" {
			targetInstance = a.profile.InstanceARN
		}
		result, err := engine.ValidateCompatibility(cmd.Context(), args[0], targetInstance)
		if err != nil {
			return err
		}
		for _, w := range result.Warnings {
			fmt.Printf("  ! %s\n", w)
		}
		if !result.Valid {
			for _, e := range result.Errors {
				fmt.Fprintf(os.Stderr, "  ✗ %s\n", e)
			}
			return fmt.Errorf("backup %s is not compatible with %s", args[0], targetInstance)
		}
		fmt.Printf("✓ Backup %s is compatible with %s\n", args[0], targetInstance)
		return nil
	},
}

func restoreOptions(cmd *cobra.Command) (restore.Options, error) {
	strategy, _ := cmd.Flags().GetString("conflict-strategy")
	targets, _ := cmd.Flags().GetStringSlice("target-resources")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	targetInstance, _ := cmd.Flags().GetString("target-instance")
	skipValidation, _ := cmd.Flags().GetBool("skip-validation")
	operationID, _ := cmd.Flags().GetString("operation-id")

	opts := restore.Options{
		DryRun:            dryRun,
		TargetInstanceARN: targetInstance,
		SkipValidation:    skipValidation,
		OperationID:       operationID,
	}
	switch s := types.ConflictStrategy(strings.ToUpper(strategy)); s {
	case "", types.ConflictOverwrite, types.ConflictSkip, types.ConflictMerge, types.ConflictPrompt:
		opts.Strategy = s
	default:
		return opts, fmt.Errorf("invalid conflict strategy: %s", strategy)
	}
	for _, t := range targets {
		switch kind := types.ResourceKind(t); kind {
		case types.KindAll, types.KindUsers, types.KindGroups,
			types.KindPermissionSets, types.KindAssignments:
			opts.TargetResources = append(opts.TargetResources, kind)
		default:
			return opts, fmt.Errorf("invalid target resource: %s", t)
		}
	}
	return opts, nil
}

func printRestorePreview(preview *restore.PreviewResult) {
	fmt.Printf("Backup:   %s\n", preview.BackupID)
	fmt.Printf("Strategy: %s\n", preview.Strategy)
	fmt.Printf("%-16s %10s %10s\n", "", "to restore", "existing")
	fmt.Printf("%-16s %10d %10d\n", "users", preview.ToRestore.Users, preview.Existing.Users)
	fmt.Printf("%-16s %10d %10d\n", "groups", preview.ToRestore.Groups, preview.Existing.Groups)
	fmt.Printf("%-16s %10d %10d\n", "permission sets", preview.ToRestore.PermissionSets, preview.Existing.PermissionSets)
	fmt.Printf("%-16s %10d %10d\n", "assignments", preview.ToRestore.Assignments, preview.Existing.Assignments)
	for _, w := range preview.Warnings {
		fmt.Printf("  ! %s\n", w)
	}
}

func init() {
	for _, c := range []*cobra.Command{restoreCmd, restorePreviewCmd} {
		c.Flags().String("conflict-strategy", "prompt", "How to treat existing resources (overwrite, skip, merge, prompt)")
		c.Flags().StringSlice("target-resources", nil, "Restrict the restore to resource kinds (users, groups, permission-sets, assignments)")
		c.Flags().Bool("dry-run", false, "Compute changes without writing")
		c.Flags().String("target-instance", "", "Restore into a different instance ARN")
		c.Flags().Bool("skip-validation", false, "Skip the compatibility check")
		c.Flags().String("operation-id", "", "Resume a failed restore by its operation id")
	}
	restoreCmd.Flags().BoolP("force", "y", false, "Skip the confirmation prompt")
	restoreValidateCmd.Flags().String("target-instance", "", "Instance ARN to validate against (defaults to the profile instance)")

	restoreCmd.AddCommand(restorePreviewCmd)
	restoreCmd.AddCommand(restoreValidateCmd)
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudsmiths/idman/pkg/bulk"
	"github.com/cloudsmiths/idman/pkg/ingest"
	"github.com/cloudsmiths/idman/pkg/resolver"
	"github.com/cloudsmiths/idman/pkg/types"
)

var assignCmd = &cobra.Command{
	Use:   "assign <file>",
	Short: "Bulk-assign permission sets from a CSV or JSON file",
	Long: `Assign reads principal/permission-set/account rows from a CSV or
JSON file, resolves the names against the directory, shows a preview,
and executes the batch. Rows that already exist are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBulk(cmd, args[0], types.OperationAssign)
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <file>",
	Short: "Bulk-revoke permission sets from a CSV or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBulk(cmd, args[0], types.OperationRevoke)
	},
}

func init() {
	for _, c := range []*cobra.Command{assignCmd, revokeCmd} {
		c.Flags().Bool("dry-run", false, "Preview the batch without executing")
		c.Flags().BoolP("force", "y", false, "Skip the confirmation prompt")
		c.Flags().Bool("continue-on-error", true, "Keep processing after individual failures")
		c.Flags().Int("batch-size", 0, "Items per batch, 1-50 (0 selects an account-count based default)")
	}
}

func runBulk(cmd *cobra.Command, path string, op types.BulkOperation) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")
	continueOnError, _ := cmd.Flags().GetBool("continue-on-error")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	loaded, err := ingest.LoadFile(path)
	if err != nil {
		return err
	}
	if !loaded.Valid() {
		for _, rowErr := range loaded.Errors {
			fmt.Fprintf(os.Stderr, "  %s\n", rowErr.String())
		}
		return fmt.Errorf("%s has %d invalid rows", path, len(loaded.Errors))
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	res := resolver.New(a.client)
	if err := res.WarmCache(ctx, loaded.Records); err != nil {
		return err
	}
	for i := range loaded.Records {
		res.ResolveRecord(ctx, &loaded.Records[i])
	}

	preview := bulk.BuildPreview(op, loaded.Records)
	preview.Render(os.Stdout)

	gate, err := bulk.Gate(preview, bulk.GateOptions{DryRun: dryRun, Force: force},
		bulk.PrompterFunc(confirm))
	if err != nil {
		return err
	}
	switch gate {
	case bulk.GateDryRun:
		fmt.Println("✓ Dry run complete, nothing executed")
		return nil
	case bulk.GateDeclined:
		fmt.Println("Aborted")
		return nil
	}

	tuning := bulk.TuneFor(len(preview.Accounts), op)
	opts := bulk.Options{
		ContinueOnError: continueOnError,
		BatchSize:       tuning.BatchSize,
		MaxConcurrent:   tuning.MaxConcurrent,
		RateDelay:       tuning.RateDelay,
	}
	if batchSize > 0 {
		opts.BatchSize = batchSize
	}

	executor := bulk.NewExecutor(a.client, a.broker)
	results, err := executor.Process(ctx, loaded.Records, op, opts)
	if err != nil {
		return err
	}

	fmt.Printf("✓ %s complete: %d succeeded, %d skipped, %d failed (%s)\n",
		op, len(results.Successful), len(results.Skipped), len(results.Failed),
		results.Duration.Round(10*time.Millisecond))
	for _, item := range results.Failed {
		fmt.Fprintf(os.Stderr, "  ✗ %s / %s / %s: %s\n",
			item.Record.PrincipalName, item.Record.PermissionSetName,
			item.Record.AccountName, item.Error)
	}
	if len(results.Failed) > 0 {
		return fmt.Errorf("%d of %d items failed", len(results.Failed), results.TotalProcessed)
	}
	return nil
}

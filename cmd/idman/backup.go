package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudsmiths/idman/pkg/collector"
	"github.com/cloudsmiths/idman/pkg/storage"
	"github.com/cloudsmiths/idman/pkg/types"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create and manage directory backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the directory into the local store",
	RunE: func(cmd *cobra.Command, args []string) error {
		incremental, _ := cmd.Flags().GetBool("incremental")
		sinceStr, _ := cmd.Flags().GetString("since")

		opts := collector.Options{Type: types.BackupFull}
		if incremental {
			if sinceStr == "" {
				return fmt.Errorf("--incremental requires --since")
			}
			since, err := time.Parse(time.RFC3339, sinceStr)
			if err != nil {
				return fmt.Errorf("invalid --since timestamp: %w", err)
			}
			opts.Type = types.BackupIncremental
			opts.Since = since
		}

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		coll := collector.New(a.client)
		status, err := coll.ValidateConnection(cmd.Context())
		if err != nil {
			return err
		}
		if !status.Healthy {
			for _, capability := range status.MissingCapabilities {
				fmt.Fprintf(os.Stderr, "  ✗ missing capability: %s\n", capability)
			}
			return fmt.Errorf("directory connection is not healthy")
		}

		data, err := coll.Collect(cmd.Context(), opts)
		if err != nil {
			return err
		}
		data.Metadata.RetentionPolicy = a.profile.Retention

		backupID, err := a.store.StoreBackup(data)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Backup %s created (%d users, %d groups, %d permission sets, %d assignments)\n",
			backupID, len(data.Users), len(data.Groups),
			len(data.PermissionSets), len(data.Assignments))
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		typeFilter, _ := cmd.Flags().GetString("type")
		sinceStr, _ := cmd.Flags().GetString("since")

		filters := &storage.ListFilters{Type: types.BackupType(strings.ToUpper(typeFilter))}
		if sinceStr != "" {
			since, err := time.Parse(time.RFC3339, sinceStr)
			if err != nil {
				return fmt.Errorf("invalid --since timestamp: %w", err)
			}
			filters.Since = since
		}

		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		backups, err := a.store.ListBackups(filters)
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Println("No backups stored")
			return nil
		}
		for _, meta := range backups {
			fmt.Printf("%-36s  %-12s  %s  %d resources\n",
				meta.BackupID, meta.Type,
				meta.Timestamp.Format(time.RFC3339), meta.Counts.Total())
		}
		return nil
	},
}

var backupShowCmd = &cobra.Command{
	Use:   "show <backup-id>",
	Short: "Show the metadata of a stored backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		meta, err := a.store.GetBackupMetadata(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Backup:      %s\n", meta.BackupID)
		fmt.Printf("Type:        %s\n", meta.Type)
		fmt.Printf("Created:     %s\n", meta.Timestamp.Format(time.RFC3339))
		fmt.Printf("Instance:    %s\n", meta.SourceInstanceARN)
		fmt.Printf("Account:     %s (%s)\n", meta.SourceAccount, meta.SourceRegion)
		fmt.Printf("Users:       %d\n", meta.Counts.Users)
		fmt.Printf("Groups:      %d\n", meta.Counts.Groups)
		fmt.Printf("Perm. sets:  %d\n", meta.Counts.PermissionSets)
		fmt.Printf("Assignments: %d\n", meta.Counts.Assignments)
		fmt.Printf("Size:        %d bytes\n", meta.SizeBytes)
		if meta.Encryption.Encrypted {
			fmt.Printf("Encryption:  %s (key %s)\n", meta.Encryption.Algorithm, meta.Encryption.KeyID)
		}
		return nil
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <backup-id>",
	Short: "Delete a stored backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if !force {
			ok, err := confirm(fmt.Sprintf("Delete backup %s?", args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted")
				return nil
			}
		}

		existed, err := a.store.DeleteBackup(args[0])
		if err != nil {
			return err
		}
		if !existed {
			return fmt.Errorf("backup not found: %s", args[0])
		}
		fmt.Printf("✓ Backup %s deleted\n", args[0])
		return nil
	},
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <backup-id>",
	Short: "Verify the integrity checksum of a stored backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.store.VerifyIntegrity(args[0])
		if err != nil {
			return err
		}
		if !result.Valid {
			for _, e := range result.Errors {
				fmt.Fprintf(os.Stderr, "  ✗ %s\n", e)
			}
			return fmt.Errorf("backup %s failed integrity verification", args[0])
		}
		fmt.Printf("✓ Backup %s verified\n", args[0])
		return nil
	},
}

func init() {
	backupCreateCmd.Flags().Bool("incremental", false, "Capture only resources changed since --since")
	backupCreateCmd.Flags().String("since", "", "RFC3339 timestamp for incremental capture")
	backupListCmd.Flags().String("type", "", "Filter by backup type (full or incremental)")
	backupListCmd.Flags().String("since", "", "Only list backups newer than this RFC3339 timestamp")
	backupDeleteCmd.Flags().BoolP("force", "y", false, "Skip the confirmation prompt")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupShowCmd)
	backupCmd.AddCommand(backupDeleteCmd)
	backupCmd.AddCommand(backupVerifyCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cloudsmiths/idman/pkg/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <backup-id>",
	Short: "Write a stored backup to a portable file",
	Long: `Export serialises a backup as JSON, YAML, or CSV, optionally
gzip-compressed. The output is self-contained and can be imported into
another store with the import command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatStr, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		compress, _ := cmd.Flags().GetBool("compress")

		format, err := export.ParseFormat(formatStr)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := a.store.RetrieveBackup(args[0])
		if err != nil {
			return err
		}

		w := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := export.Export(w, data, format, compress); err != nil {
			return err
		}
		if output != "" {
			fmt.Printf("✓ Backup %s exported to %s\n", args[0], output)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an exported backup file into the local store",
	Long: `Import reads an exported backup file, revalidates its contents, and
stores it under a fresh backup id. Gzip compression is detected
automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatStr, _ := cmd.Flags().GetString("format")

		format, err := export.ParseFormat(formatStr)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()

		data, err := export.Import(f, format)
		if err != nil {
			return err
		}

		result, err := export.Revalidate(data, uuid.NewString())
		if err != nil {
			return err
		}
		if !result.Valid {
			for _, e := range result.Errors {
				fmt.Fprintf(os.Stderr, "  ✗ %s\n", e)
			}
			return fmt.Errorf("%s failed validation, nothing imported", args[0])
		}

		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		backupID, err := a.store.StoreBackup(data)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Imported %s as backup %s\n", args[0], backupID)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "json", "Output format (json, yaml, csv)")
	exportCmd.Flags().StringP("output", "o", "", "Output file (defaults to stdout)")
	exportCmd.Flags().Bool("compress", false, "Gzip-compress the output")
	importCmd.Flags().String("format", "json", "Input format (json, yaml, csv)")
}

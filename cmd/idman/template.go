package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cloudsmiths/idman/pkg/bulk"
	"github.com/cloudsmiths/idman/pkg/resolver"
	"github.com/cloudsmiths/idman/pkg/template"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage declarative assignment templates",
}

var templateCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Store a template from a YAML or JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")

		tpl, err := template.LoadFile(path)
		if err != nil {
			return err
		}
		if errs := template.ValidateStructure(tpl); len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintf(os.Stderr, "  ✗ %s\n", e)
			}
			return fmt.Errorf("template %s failed validation", path)
		}

		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.SaveTemplate(tpl); err != nil {
			return err
		}
		fmt.Printf("✓ Template %s stored\n", tpl.Metadata.Name)
		return nil
	},
}

var templateValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a template file against the directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tpl, err := template.LoadFile(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		validator := template.NewValidator(a.client, resolver.New(a.client))
		validation, err := validator.Validate(cmd.Context(), tpl)
		if err != nil {
			return err
		}
		if !validation.Valid() {
			for _, e := range validation.Errors {
				fmt.Fprintf(os.Stderr, "  ✗ %s\n", e)
			}
			return fmt.Errorf("template %s has %d validation errors",
				tpl.Metadata.Name, len(validation.Errors))
		}
		fmt.Printf("✓ Template %s is valid (%d entities, %d permission sets)\n",
			tpl.Metadata.Name, len(validation.Entities), len(validation.PermissionSets))
		return nil
	},
}

var templatePreviewCmd = &cobra.Command{
	Use:   "preview <name>",
	Short: "Show the assignments a stored template would create",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		tpl, err := a.store.GetTemplate(args[0])
		if err != nil {
			return err
		}

		executor := templateExecutor(a)
		preview, err := executor.BuildPreview(cmd.Context(), tpl)
		if err != nil {
			return err
		}

		fmt.Printf("Template: %s\n", preview.TemplateName)
		fmt.Printf("Accounts: %d\n", len(preview.Accounts))
		fmt.Printf("Assignments: %d\n", preview.Total)
		for _, pa := range preview.Assignments {
			fmt.Printf("  %s  %s  %s\n", pa.EntityRef, pa.PermissionSetName, pa.AccountID)
		}
		return nil
	},
}

var templateApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Apply a stored template to the directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		tpl, err := a.store.GetTemplate(args[0])
		if err != nil {
			return err
		}

		executor := templateExecutor(a)
		if !dryRun && !force {
			preview, err := executor.BuildPreview(cmd.Context(), tpl)
			if err != nil {
				return err
			}
			ok, err := confirm(fmt.Sprintf("Apply %d assignments across %d accounts?",
				preview.Total, len(preview.Accounts)))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted")
				return nil
			}
		}

		result, err := executor.Apply(cmd.Context(), tpl, bulk.Options{DryRun: dryRun})
		if err != nil {
			return err
		}
		if dryRun {
			fmt.Printf("✓ Dry run complete: %d assignments planned\n",
				result.Created+result.Skipped)
			return nil
		}
		fmt.Printf("✓ Template %s applied: %d created, %d skipped, %d failed\n",
			result.TemplateName, result.Created, result.Skipped, result.Failed)
		if result.Failed > 0 {
			return fmt.Errorf("%d assignments failed", result.Failed)
		}
		return nil
	},
	Args: cobra.ExactArgs(1),
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		templates, err := a.store.ListTemplates()
		if err != nil {
			return err
		}
		if len(templates) == 0 {
			fmt.Println("No templates stored")
			return nil
		}
		for _, meta := range templates {
			fmt.Printf("%-30s  %-10s  %s\n", meta.Name, meta.Version, meta.Description)
		}
		return nil
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a stored template as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		tpl, err := a.store.GetTemplate(args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(tpl)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		existed, err := a.store.DeleteTemplate(args[0])
		if err != nil {
			return err
		}
		if !existed {
			return fmt.Errorf("template not found: %s", args[0])
		}
		fmt.Printf("✓ Template %s deleted\n", args[0])
		return nil
	},
}

func templateExecutor(a *app) *template.Executor {
	validator := template.NewValidator(a.client, resolver.New(a.client))
	return template.NewExecutor(validator, bulk.NewExecutor(a.client, a.broker), a.broker)
}

func init() {
	templateCreateCmd.Flags().StringP("file", "f", "", "Template file to store")
	templateCreateCmd.MarkFlagRequired("file")
	templateApplyCmd.Flags().Bool("dry-run", false, "Expand and validate without executing")
	templateApplyCmd.Flags().BoolP("force", "y", false, "Skip the confirmation prompt")

	templateCmd.AddCommand(templateCreateCmd)
	templateCmd.AddCommand(templateValidateCmd)
	templateCmd.AddCommand(templatePreviewCmd)
	templateCmd.AddCommand(templateApplyCmd)
	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateShowCmd)
	templateCmd.AddCommand(templateDeleteCmd)
}

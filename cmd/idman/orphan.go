package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudsmiths/idman/pkg/orphan"
)

var orphanCmd = &cobra.Command{
	Use:   "orphan",
	Short: "Detect assignments whose principal no longer exists",
}

var orphanDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Sweep all assignments for deleted principals",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		detector := orphan.New(a.client, a.profileName, a.profile.OrphanTTL())
		orphaned, err := detector.Detect(cmd.Context(), force)
		if err != nil {
			return err
		}
		if len(orphaned) == 0 {
			fmt.Println("✓ No orphaned assignments found")
			return nil
		}
		for _, o := range orphaned {
			fmt.Printf("  %s  %s  %s  (%s)\n",
				o.Assignment.AccountID, o.Assignment.PermissionSetARN,
				o.Assignment.PrincipalID, o.Reason)
		}
		fmt.Printf("%d orphaned assignments found\n", len(orphaned))
		return nil
	},
}

var orphanInvalidateCmd = &cobra.Command{
	Use:   "invalidate-cache",
	Short: "Discard the cached detection result for this profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		detector := orphan.New(nil, a.profileName, a.profile.OrphanTTL())
		if err := detector.InvalidateCache(); err != nil {
			return err
		}
		fmt.Println("✓ Detection cache invalidated")
		return nil
	},
}

func init() {
	orphanDetectCmd.Flags().Bool("force", false, "Bypass the cached detection result")

	orphanCmd.AddCommand(orphanDetectCmd)
	orphanCmd.AddCommand(orphanInvalidateCmd)
}

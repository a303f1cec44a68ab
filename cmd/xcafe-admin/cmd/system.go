package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andreval74/xcafe/internal/domain"
)

func newSystemCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "System-wide operations",
	}
	cmd.AddCommand(newSystemSetupCmd(opts), newSystemResetCmd(opts))
	return cmd
}

func newSystemSetupCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Become the first SuperAdmin",
		Long: `Promote the signed-in wallet to SuperAdmin. Only works on an empty
registry with a first-admin candidate credential from login.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.authedClient()
			if err != nil {
				return err
			}
			data, err := client.Request("POST", "/api/system/setup", nil)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), data)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "System initialized. Sign in again to use the SuperAdmin role.")
			return nil
		},
	}
}

func newSystemResetCmd(opts *options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every admin, user and the system configuration",
		Long: `Wipe the registry. The next wallet to sign in becomes the first-admin
candidate. Requires a SuperAdmin credential.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}
			client, err := opts.authedClient()
			if err != nil {
				return err
			}
			data, err := client.Request("POST", "/api/system/reset", nil)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), data)
			}

			var resp struct {
				Removed domain.ResetCounts `json:"removed"`
			}
			if err := json.Unmarshal(data, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "System reset: %d admins, %d users, %d config entries removed.\n",
				resp.Removed.Admins, resp.Removed.Users, resp.Removed.Config)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}

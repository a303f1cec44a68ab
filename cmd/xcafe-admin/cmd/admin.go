package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andreval74/xcafe/internal/domain"
)

type adminListResponse struct {
	Admins []domain.AdminRecord `json:"admins"`
	Total  int                  `json:"total"`
}

func newAdminCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrators",
		Long:  `Commands for managing the admin registry.`,
	}
	cmd.AddCommand(
		newAdminListCmd(opts),
		newAdminCreateCmd(opts),
		newAdminSetActiveCmd(opts, "activate", true),
		newAdminSetActiveCmd(opts, "deactivate", false),
		newAdminPermissionsCmd(opts),
		newAdminChangeWalletCmd(opts),
	)
	return cmd
}

func newAdminListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all administrators",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.authedClient()
			if err != nil {
				return err
			}
			data, err := client.Request("GET", "/api/admin/list", nil)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), data)
			}

			var resp adminListResponse
			if err := json.Unmarshal(data, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			if len(resp.Admins) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No administrators found.")
				return nil
			}

			headers := []string{"ADDRESS", "ROLE", "NAME", "ACTIVE", "CREATED BY"}
			rows := make([][]string, len(resp.Admins))
			for i, a := range resp.Admins {
				rows[i] = []string{a.Address.String(), a.Role.String(), a.Name, yesNo(a.Active), a.CreatedBy}
			}
			printTable(cmd.OutOrStdout(), headers, rows)
			return nil
		},
	}
}

func newAdminCreateCmd(opts *options) *cobra.Command {
	var (
		req  domain.CreateAdminRequest
		role string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator",
		Long: `Create an administrator. A SuperAdmin may create any admin role;
an Admin may only create moderators. The role defaults to moderator.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Address == "" {
				return fmt.Errorf("--address is required")
			}
			if role != "" {
				r, err := domain.ParseRole(role)
				if err != nil || !r.IsAdminRole() {
					return fmt.Errorf("--role must be one of %v", domain.AdminRoles)
				}
				req.Role = r
			}

			client, err := opts.authedClient()
			if err != nil {
				return err
			}
			data, err := client.Request("POST", "/api/admin/register", req)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), data)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Administrator %s created.\n", req.Address)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Address, "address", "", "Wallet address (required)")
	cmd.Flags().StringVar(&role, "role", "", "Role: super_admin, admin or moderator")
	cmd.Flags().StringVar(&req.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&req.Department, "department", "", "Department")
	cmd.Flags().StringSliceVar(&req.Permissions, "permission", nil, "Permission (repeatable)")
	return cmd
}

func newAdminSetActiveCmd(opts *options, use string, active bool) *cobra.Command {
	state := "inactive"
	if active {
		state = "active"
	}
	return &cobra.Command{
		Use:   use + " [address]",
		Short: "Mark an administrator " + state,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.authedClient()
			if err != nil {
				return err
			}
			data, err := client.Request("POST", "/api/admin/"+args[0]+"/active", map[string]bool{"active": active})
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), data)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Administrator %s %sd.\n", args[0], use)
			return nil
		},
	}
}

func newAdminPermissionsCmd(opts *options) *cobra.Command {
	var permissions []string

	cmd := &cobra.Command{
		Use:   "permissions [address]",
		Short: "Replace an administrator's permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.authedClient()
			if err != nil {
				return err
			}
			if permissions == nil {
				permissions = []string{}
			}
			data, err := client.Request("PUT", "/api/admin/"+args[0]+"/permissions", map[string][]string{"permissions": permissions})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	cmd.Flags().StringSliceVar(&permissions, "permission", nil, "Permission (repeatable); none clears the set")
	return cmd
}

func newAdminChangeWalletCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "change-wallet [new-address]",
		Short: "Move the SuperAdmin to a new wallet",
		Long: `Move the calling SuperAdmin's record to a new wallet address. The
current credential is revoked; sign in again with the new wallet.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.authedClient()
			if err != nil {
				return err
			}
			data, err := client.Request("POST", "/api/admin/change-wallet", map[string]string{"new_address": args[0]})
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), data)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "SuperAdmin moved to %s. Sign in again with the new wallet.\n", args[0])
			return nil
		},
	}
}

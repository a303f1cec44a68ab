package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/andreval74/xcafe/internal/domain"
	"github.com/andreval74/xcafe/internal/service"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system initialization status",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := opts.client().Request("GET", "/api/system/status", nil)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), data)
			}

			var status service.SystemStatus
			if err := json.Unmarshal(data, &status); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Initialized:      %s\n", yesNo(status.Initialized))
			fmt.Fprintf(out, "Signature scheme: %s\n", status.SignatureScheme)
			if status.Initialized {
				fmt.Fprintf(out, "Version:          %s\n", status.Version)
				fmt.Fprintf(out, "Setup by:         %s\n", status.SetupBy)
				if status.SetupDate != nil {
					fmt.Fprintf(out, "Setup date:       %s\n", status.SetupDate.Format(time.RFC3339))
				}
			}
			return nil
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show user and admin counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := opts.client().Request("GET", "/api/stats", nil)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), data)
			}

			var stats service.SystemStats
			if err := json.Unmarshal(data, &stats); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			printTable(cmd.OutOrStdout(),
				[]string{"USERS", "ADMINS", "INITIALIZED"},
				[][]string{{fmt.Sprint(stats.TotalUsers), fmt.Sprint(stats.TotalAdmins), yesNo(stats.Initialized)}},
			)
			return nil
		},
	}
}

// signLogin builds a signed login request for the key at the given instant
func signLogin(keyHex string, at time.Time) (*domain.AuthenticateRequest, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	message := fmt.Sprintf("xcafe-admin login %s", at.UTC().Format(time.RFC3339))
	sig, err := crypto.Sign(service.PersonalMessageHash(message), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign login message: %w", err)
	}
	sig[64] += 27

	return &domain.AuthenticateRequest{
		Address:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Message:   message,
		Signature: "0x" + hex.EncodeToString(sig),
		Timestamp: at.UnixMilli(),
	}, nil
}

func newLoginCmd(opts *options) *cobra.Command {
	var (
		key   string
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a wallet key and print the credential",
		Long: `Sign a login message with a hex-encoded secp256k1 private key and
exchange it for a credential. The key never leaves this process; only the
signature is sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = os.Getenv(EnvKey)
			}
			if key == "" {
				return fmt.Errorf("--key or %s is required", EnvKey)
			}

			req, err := signLogin(key, time.Now())
			if err != nil {
				return err
			}
			data, err := opts.client().Request("POST", "/api/auth/verify", req)
			if err != nil {
				return err
			}

			var resp domain.AuthenticateResponse
			if err := json.Unmarshal(data, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if quiet {
				fmt.Fprintln(out, resp.Token)
				return nil
			}
			if opts.output == "json" {
				return printJSON(out, data)
			}
			fmt.Fprintf(out, "Address: %s\n", resp.Address)
			fmt.Fprintf(out, "Role:    %s\n", resp.Role)
			fmt.Fprintf(out, "Expires: %s\n", resp.ExpiresAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Token:   %s\n", resp.Token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "", "Hex private key (default $"+EnvKey+")")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the token")
	return cmd
}

// Package cmd contains all CLI commands for xcafe-admin.
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Environment variables read for flag defaults
const (
	EnvURL   = "XCAFE_ADMIN_URL"
	EnvToken = "XCAFE_ADMIN_TOKEN"
	EnvKey   = "XCAFE_ADMIN_KEY"
)

// options holds the global flags
type options struct {
	url    string
	token  string
	output string
}

// Client wraps HTTP client for API calls
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new API client. token may be empty for public endpoints.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Request makes an HTTP request to the API
func (c *Client) Request(method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// printJSON indents data when it is valid JSON
func printJSON(w io.Writer, data []byte) error {
	var formatted bytes.Buffer
	if err := json.Indent(&formatted, data, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	_, err := fmt.Fprintln(w, formatted.String())
	return err
}

// printTable prints rows in aligned columns
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, h := range headers {
		fmt.Fprintf(w, "%-*s  ", widths[i], h)
	}
	fmt.Fprintln(w)
	for i := range headers {
		fmt.Fprintf(w, "%s  ", strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(w, "%-*s  ", widths[i], cell)
			}
		}
		fmt.Fprintln(w)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "xcafe-admin",
		Short: "CLI tool for managing an xcafe server",
		Long: `xcafe-admin drives the xcafe HTTP API.

Management commands need a credential. Obtain one by signing in with a
wallet key (login) or pass an existing token with --token.

Examples:
  # Check whether the system has been initialized
  xcafe-admin status

  # Sign in and export the credential
  export XCAFE_ADMIN_TOKEN=$(xcafe-admin login --key $XCAFE_ADMIN_KEY --quiet)

  # Create a moderator
  xcafe-admin admin create --address 0x... --role moderator --name "Support"

Environment Variables:
  XCAFE_ADMIN_URL    Base URL of the API (default: http://localhost:3000)
  XCAFE_ADMIN_TOKEN  Credential sent as bearer token
  XCAFE_ADMIN_KEY    Hex private key used by login`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.url, "url", "u", getEnvOrDefault(EnvURL, "http://localhost:3000"), "API base URL")
	root.PersistentFlags().StringVarP(&opts.token, "token", "t", os.Getenv(EnvToken), "Credential token")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, json")

	root.AddCommand(
		newStatusCmd(opts),
		newStatsCmd(opts),
		newLoginCmd(opts),
		newAdminCmd(opts),
		newSystemCmd(opts),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *options) client() *Client {
	return NewClient(o.url, o.token)
}

func (o *options) authedClient() (*Client, error) {
	if o.token == "" {
		return nil, fmt.Errorf("a credential is required: use --token or %s", EnvToken)
	}
	return o.client(), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Package cli implements the forge command-line client.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// settings are the resolved persistent flags shared by every command.
type settings struct {
	host    string
	output  string
	profile string
	wallet  string
	client  *Client
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{"error": err.Error()}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				errObj["http_status"] = apiErr.HTTPStatus
				errObj["code"] = apiErr.Code
				if apiErr.ErrorClass != "" {
					errObj["error_class"] = apiErr.ErrorClass
				}
			}
			_ = PrintJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	s := &settings{client: NewClient("")}

	rootCmd := &cobra.Command{
		Use:           "forge",
		Short:         "Asset forge CLI",
		Long:          "Submit paid generation jobs, follow their status and inspect the billing ledger.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = defaultUserConfig()
			}
			p, err := cfg.ActiveProfile(s.profile)
			if err != nil {
				return err
			}

			// Precedence: flag > env > profile > default.
			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("FORGE_HOST"); v != "" {
					s.host = v
				} else if p.Host != "" {
					s.host = p.Host
				}
			}
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("FORGE_OUTPUT"); v != "" {
					s.output = v
				} else if p.Output != "" {
					s.output = p.Output
				}
			}
			s.wallet = p.Wallet
			if v := os.Getenv("FORGE_WALLET"); v != "" {
				s.wallet = v
			}

			if err := validateOutputFormat(s.output); err != nil {
				return err
			}
			if err := validateHostURL(s.host); err != nil {
				return err
			}
			s.client.BaseURL = s.host
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.host, "host", "http://localhost:8080", "API host URL")
	rootCmd.PersistentFlags().StringVarP(&s.output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&s.profile, "profile", "p", "", "Config profile to use")

	rootCmd.AddCommand(newSubmitCmd(s))
	rootCmd.AddCommand(newStatusCmd(s))
	rootCmd.AddCommand(newLedgerCmd(s))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

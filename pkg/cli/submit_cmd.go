package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var components = []string{"prompt-optimizer", "code-explainer", "prompt-tester", "contract-intel"}

func newSubmitCmd(s *settings) *cobra.Command {
	var (
		req      SubmitRequest
		textFile string
		payment  string
		wait     bool
		opts     waitOptions
	)

	cmd := &cobra.Command{
		Use:       "submit <component>",
		Short:     "Submit a paid generation job",
		Long:      "Submit a job for one of: " + strings.Join(components, ", ") + ".",
		Example:   "  forge submit prompt-optimizer --text 'summarize this' --format txt --payment $RECEIPT",
		Args:      cobra.ExactArgs(1),
		ValidArgs: components,
		RunE: func(cmd *cobra.Command, args []string) error {
			component := args[0]
			if !validComponent(component) {
				return fmt.Errorf("unknown component %q: use one of %s", component, strings.Join(components, ", "))
			}
			if textFile != "" {
				data, err := os.ReadFile(textFile)
				if err != nil {
					return fmt.Errorf("read text file: %w", err)
				}
				req.Text = string(data)
			}
			if req.Wallet == "" {
				req.Wallet = s.wallet
			}
			if payment == "" {
				payment = os.Getenv("FORGE_PAYMENT")
			}

			resp, err := s.client.Submit(cmd.Context(), component, payment, req)
			if err != nil {
				return err
			}
			if wait {
				st, err := waitForJob(cmd, s.client, resp.JobID, opts)
				if err != nil {
					return err
				}
				return printStatus(cmd, st)
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), resp)
			}
			return PrintDetail(cmd.OutOrStdout(), [][2]string{
				{"Job ID", resp.JobID},
				{"Status", resp.Status},
				{"Status URL", resp.StatusURL},
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Text, "text", "", "Prompt or code to process")
	f.StringVar(&textFile, "text-file", "", "Read the prompt or code from a file")
	f.StringVar(&req.ContractAddress, "contract", "", "Contract address (contract-intel)")
	f.StringVar(&req.Network, "network", "", "Network of the contract (contract-intel)")
	f.StringVar(&req.Chain, "chain", "", "Target chain (code-explainer)")
	f.StringVar(&req.Format, "format", "", "Export format: pdf, txt, md, docx, html (default pdf)")
	f.StringVar(&req.Wallet, "wallet", "", "Paying wallet (defaults to the profile wallet)")
	f.StringVar(&payment, "payment", "", "Payment proof (or FORGE_PAYMENT)")
	f.BoolVar(&wait, "wait", false, "Wait for the job to finish")
	opts.register(cmd)
	cmd.MarkFlagsMutuallyExclusive("text", "text-file")

	return cmd
}

func validComponent(c string) bool {
	for _, k := range components {
		if k == c {
			return true
		}
	}
	return false
}

package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newLedgerCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the billing ledger",
	}
	cmd.AddCommand(newLedgerListCmd(s))
	cmd.AddCommand(newLedgerRecentCmd(s))
	return cmd
}

func newLedgerListCmd(s *settings) *cobra.Command {
	var (
		wallet string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a wallet's ledger entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if wallet == "" {
				wallet = s.wallet
			}
			if wallet == "" {
				return errors.New("--wallet is required (or set a profile wallet)")
			}
			page, err := s.client.Ledger(cmd.Context(), wallet, limit, offset)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), page)
			}
			if err := printLedger(cmd, page.Entries); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d-%d of %d\n",
				min(page.Offset+1, int(page.Total)), page.Offset+len(page.Entries), page.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", "", "Wallet address")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (server default 5)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	return cmd
}

func newLedgerRecentCmd(s *settings) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the newest ledger entries across wallets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := s.client.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), entries)
			}
			return printLedger(cmd, entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of entries (server default 50)")
	return cmd
}

func printLedger(cmd *cobra.Command, entries []LedgerEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Timestamp.Local().Format(time.DateTime),
			e.Wallet,
			e.Component,
			e.Price,
			e.Status,
			e.Filename,
		})
	}
	return PrintTable(cmd.OutOrStdout(), []string{"id", "timestamp", "wallet", "component", "price", "status", "filename"}, rows)
}

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type waitOptions struct {
	interval time.Duration
	timeout  time.Duration
}

func (o *waitOptions) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&o.interval, "interval", 2*time.Second, "Polling interval with --wait")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 10*time.Minute, "Give up waiting after this long")
}

func newStatusCmd(s *settings) *cobra.Command {
	var (
		wait bool
		opts waitOptions
	)

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				st  *JobStatus
				err error
			)
			if wait {
				st, err = waitForJob(cmd, s.client, args[0], opts)
			} else {
				st, err = s.client.Status(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printStatus(cmd, st)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the job succeeds or fails")
	opts.register(cmd)
	return cmd
}

// waitForJob polls id until it is terminal. Progress dots go to stderr only
// when stderr is a terminal.
func waitForJob(cmd *cobra.Command, c *Client, id string, opts waitOptions) (*JobStatus, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	if opts.interval <= 0 {
		opts.interval = 2 * time.Second
	}
	progress := term.IsTerminal(int(os.Stderr.Fd())) //nolint:gosec // fd fits in int

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()
	for {
		st, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if st.Terminal() {
			if progress {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr())
			}
			return st, nil
		}
		if progress {
			_, _ = fmt.Fprint(cmd.ErrOrStderr(), ".")
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("job %s still %s: %w", id, st.State, ctx.Err())
		case <-ticker.C:
		}
	}
}

func printStatus(cmd *cobra.Command, st *JobStatus) error {
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(cmd.OutOrStdout(), st)
	}
	pairs := [][2]string{
		{"Job ID", st.JobID},
		{"Kind", st.Kind},
		{"State", st.State},
	}
	if st.Result != nil {
		pairs = append(pairs,
			[2]string{"Filename", st.Result.Filename},
			[2]string{"Format", st.Result.Format},
			[2]string{"Download URL", st.Result.DownloadURL})
	}
	pairs = append(pairs,
		[2]string{"Error Class", st.ErrorClass},
		[2]string{"Error", st.Error})
	return PrintDetail(cmd.OutOrStdout(), pairs)
}

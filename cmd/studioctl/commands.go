package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"genstudio/internal/client"
	"genstudio/internal/domain"
)

type rootOptions struct {
	configPath string
	server     string
	token      string
	jsonOutput bool

	cfg fileConfig
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "studioctl",
		Short:         "Submit and follow content generation jobs",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("server") {
				cfg.Server = opts.server
			}
			if cmd.Flags().Changed("token") {
				cfg.Token = opts.token
			}
			opts.cfg = cfg
			return nil
		},
	}
	addRootFlags(cmd.PersistentFlags(), opts)

	cmd.AddCommand(newSubmitCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newCancelCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	return cmd
}

func addRootFlags(fs *pflag.FlagSet, opts *rootOptions) {
	fs.StringVar(&opts.configPath, "config", defaultConfigPath(), "Path to the TOML config file")
	fs.StringVar(&opts.server, "server", defaultServer, "API base URL")
	fs.StringVar(&opts.token, "token", "", "Bearer token")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")
}

func (o *rootOptions) api() *client.Client {
	return client.NewClient(o.cfg.Server, o.cfg.Token, nil)
}

func (o *rootOptions) printJob(w io.Writer, job *domain.Job) error {
	if o.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}
	fmt.Fprintf(w, "Job:      %s\n", job.ID)
	fmt.Fprintf(w, "Status:   %s\n", job.Status)
	fmt.Fprintf(w, "Platform: %s\n", job.Platform)
	fmt.Fprintf(w, "Cost:     %.4f\n", job.Cost)
	if job.ResultURL != "" {
		fmt.Fprintf(w, "Result:   %s\n", job.ResultURL)
	}
	if job.ErrorKind != "" {
		fmt.Fprintf(w, "Error:    %s %s\n", job.ErrorKind, job.ErrorMessage)
	}
	return nil
}

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var (
		platform string
		wait     bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "submit <prompt>",
		Short: "Submit a prompt for generation",
		Long: `Submit a prompt for generation.

Examples:
  studioctl submit "Write a tweet about coffee" --platform twitter
  studioctl submit "A cat in a spacesuit" --platform instagram_image --wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("platform") {
				platform = opts.cfg.Platform
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			out := cmd.OutOrStdout()

			if !wait {
				res, err := opts.api().Submit(ctx, args[0], platform)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return json.NewEncoder(out).Encode(res)
				}
				if res.IsDuplicate {
					fmt.Fprintf(out, "Duplicate of %s: %s\n", res.JobID, res.ResultURL)
					return nil
				}
				fmt.Fprintf(out, "Queued %s\n", res.JobID)
				return nil
			}

			tracker := client.NewTracker(opts.api(), client.Options{ReconnectAttempts: opts.cfg.ReconnectAttempts})
			tracker.OnChange(func(s client.Snapshot) {
				if !opts.jsonOutput {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", s.State, s.JobID)
				}
			})
			if err := tracker.Submit(ctx, args[0], platform); err != nil {
				return err
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			snap, err := tracker.Wait(ctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				tracker.Abandon()
				return fmt.Errorf("stopped waiting for job %s: %w", snap.JobID, err)
			}
			if opts.jsonOutput {
				return json.NewEncoder(out).Encode(map[string]any{
					"jobID":     snap.JobID,
					"state":     snap.State,
					"resultURL": snap.ResultURL,
				})
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, snap.ResultURL)
			return nil
		},
	}
	cmd.Flags().StringVarP(&platform, "platform", "p", "twitter", "Target platform")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Follow the job until it finishes")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting after this long (0 waits forever)")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := opts.api().Status(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("couldn't get job status: %w", err)
			}
			return opts.printJob(cmd.OutOrStdout(), job)
		},
	}
}

func newCancelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending job",
		Long: `Cancel a job that has not been picked up yet.

Only pending jobs can be cancelled. Once a worker claims a job it runs to
completion or failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := opts.api().Cancel(cmd.Context(), args[0])
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.Status != "" {
					return fmt.Errorf("job is not pending (current status: %s)", apiErr.Status)
				}
				return fmt.Errorf("couldn't cancel job: %w", err)
			}
			return opts.printJob(cmd.OutOrStdout(), job)
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [job-id]",
		Short: "Stream job events",
		Long: `Stream job events for the current user.

With a job id the command exits once that job reaches a terminal status.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var jobID string
			if len(args) == 1 {
				jobID = args[0]
			}
			return watch(ctx, opts, cmd.OutOrStdout(), jobID)
		},
	}
}

func watch(ctx context.Context, opts *rootOptions, out io.Writer, jobID string) error {
	api := opts.api()
	stream, err := api.OpenStream(ctx)
	if err != nil {
		return fmt.Errorf("couldn't open event stream: %w", err)
	}
	defer stream.Close()
	stopOnCancel := context.AfterFunc(ctx, func() { stream.Close() })
	defer stopOnCancel()

	if jobID != "" {
		job, err := api.Status(ctx, jobID)
		if err != nil {
			return fmt.Errorf("couldn't get job status: %w", err)
		}
		if job.Status.IsTerminal() {
			return opts.printJob(out, job)
		}
	}

	for {
		frame, err := stream.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if frame.Event == "" {
			continue
		}
		var job domain.Job
		if err := json.Unmarshal([]byte(frame.Data), &job); err != nil {
			continue
		}
		if jobID != "" && job.ID != jobID {
			continue
		}
		if opts.jsonOutput {
			_ = json.NewEncoder(out).Encode(map[string]any{"event": frame.Event, "job": job})
		} else {
			fmt.Fprintf(out, "%-14s %s %s\n", frame.Event, job.ID, job.ResultURL)
		}
		if jobID != "" && job.Status.IsTerminal() {
			return nil
		}
	}
}

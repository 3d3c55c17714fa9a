package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"genstudio/internal/api"
	"genstudio/internal/batch"
	"genstudio/internal/jobstore"
	"genstudio/internal/logging"
	"genstudio/internal/state"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Create and follow batch generation jobs",
	}
	cmd.AddCommand(newBatchCreateCommand(ctx))
	cmd.AddCommand(newBatchListCommand(ctx))
	cmd.AddCommand(newBatchStatusCommand(ctx))
	cmd.AddCommand(newBatchWatchCommand(ctx))
	cmd.AddCommand(newBatchCancelCommand(ctx))
	cmd.AddCommand(newBatchDeleteCommand(ctx))
	cmd.AddCommand(newBatchHistoryCommand(ctx))
	return cmd
}

func newBatchCreateCommand(ctx *commandContext) *cobra.Command {
	var name, file string
	var prompts, promptIDs []string
	var count int
	var watch, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a batch job",
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := append([]string(nil), prompts...)
			if strings.TrimSpace(file) != "" {
				lines, err := readPromptFile(file)
				if err != nil {
					return err
				}
				texts = append(texts, lines...)
			}
			items := make([]api.BatchPromptItem, 0, len(texts)+len(promptIDs))
			for _, text := range texts {
				items = append(items, api.BatchPromptItem{PromptText: text, Count: count})
			}
			for _, id := range promptIDs {
				items = append(items, api.BatchPromptItem{PromptID: strings.TrimSpace(id), Count: count})
			}

			return ctx.withSession(cmd, func(s *session) error {
				job, err := s.tracker.Create(cmd.Context(), name, items)
				if err != nil {
					return s.fail(err)
				}
				if !watch {
					if jsonOutput {
						return writeJSON(cmd, job)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Created batch job %s (%d images)\n", job.ID, job.TotalImages)
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Created batch job %s (%d images)\n", job.ID, job.TotalImages)
				return watchBatch(cmd, s, job.ID, jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Job name")
	cmd.Flags().StringArrayVarP(&prompts, "prompt", "p", nil, "Prompt text (repeatable)")
	cmd.Flags().StringArrayVar(&promptIDs, "prompt-id", nil, "Saved prompt id (repeatable)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "File with one prompt per line")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Images per prompt")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow the job until it finishes")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}

// readPromptFile returns the non-blank, non-comment lines of path.
func readPromptFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompt file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}
	return lines, nil
}

func newBatchListCommand(ctx *commandContext) *cobra.Command {
	var flags listFlags
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batch jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				filters := filtersFrom(map[string]string{api.FilterStatus: status})
				if err := s.lists.Refresh(cmd.Context(), state.KindBatchJobs, filters, flags.page, flags.pageSize); err != nil {
					return s.fail(err)
				}
				block := s.store.Snapshot().BatchJobs
				if flags.json {
					return writeJSON(cmd, block)
				}
				out := cmd.OutOrStdout()
				if len(block.List) == 0 {
					fmt.Fprintln(out, "No batch jobs found")
					return nil
				}
				fmt.Fprintln(out, renderBatchTable(block.List))
				fmt.Fprintln(out, pageFooter(block.Total, block.CurrentPage, block.PageSize, len(block.List)))
				return nil
			})
		},
	}

	bindListFlags(cmd, &flags)
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (queued, running, completed, failed, cancelled)")
	return cmd
}

func newBatchStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput, full bool

	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Fetch the current progress of a batch job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				var job api.BatchJob
				var err error
				if full {
					job, err = s.tracker.Refresh(cmd.Context(), args[0])
				} else {
					job, err = s.tracker.Poll(cmd.Context(), args[0])
				}
				if err != nil {
					return s.fail(err)
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				printBatchDetail(cmd, job)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Reload the whole job record instead of the status summary")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}

func newBatchWatchCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Poll a batch job until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				return watchBatch(cmd, s, args[0], jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the final job as JSON")
	return cmd
}

func watchBatch(cmd *cobra.Command, s *session, id string, jsonOutput bool) error {
	progress := cmd.OutOrStdout()
	if jsonOutput {
		progress = cmd.ErrOrStderr()
	}
	colorize := shouldColorize(progress)
	job, err := s.watcher().Watch(cmd.Context(), id, func(job api.BatchJob) {
		fmt.Fprintln(progress, renderStatusLine(job.ID, batchStatusKind(job.Status), titleLabel(string(job.Status))+" "+formatProgress(job), colorize))
	})
	if err != nil {
		if errors.Is(err, batch.ErrWatchBusy) {
			return err
		}
		return s.fail(err)
	}
	if job.Status.IsTerminal() {
		if err := s.notify.NotifyBatchFinished(cmd.Context(), job); err != nil {
			logging.WarnWithContext(s.logger, "batch notification failed", "notification_failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}
	if jsonOutput {
		return writeJSON(cmd, job)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Batch job %s finished: %s\n", job.ID, titleLabel(string(job.Status)))
	return nil
}

func newBatchCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a batch job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				if err := s.tracker.Cancel(cmd.Context(), args[0]); err != nil {
					return s.fail(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled batch job %s\n", args[0])
				return nil
			})
		},
	}
}

func newBatchDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a batch job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				if err := s.tracker.Remove(cmd.Context(), args[0]); err != nil {
					return s.fail(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted batch job %s\n", args[0])
				return nil
			})
		},
	}
}

func newBatchHistoryCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var clearFinished, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show batch jobs recorded on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]api.BatchStatus, 0, len(statuses))
			for _, raw := range statuses {
				status, ok := api.ParseBatchStatus(raw)
				if !ok {
					return fmt.Errorf("unknown batch status %q", raw)
				}
				filter = append(filter, status)
			}

			return ctx.withJournal(func(journal *jobstore.Store) error {
				out := cmd.OutOrStdout()
				if clearFinished {
					removed, err := journal.ClearFinished(cmd.Context())
					if err != nil {
						return fmt.Errorf("clear batch history: %w", err)
					}
					fmt.Fprintf(out, "Removed %d finished job(s) from history\n", removed)
					return nil
				}

				entries, err := journal.List(cmd.Context(), filter...)
				if err != nil {
					return fmt.Errorf("list batch history: %w", err)
				}
				if jsonOutput {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(out, "No batch jobs recorded")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					job := api.BatchJob{TotalImages: e.TotalImages, CompletedImages: e.CompletedImages, FailedImages: e.FailedImages}
					rows = append(rows, []string{
						e.ID,
						orDash(e.Name),
						titleLabel(string(e.Status)),
						formatProgress(job),
						formatWhen(e.UpdatedAt),
						snip(orDash(e.LastMessage)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Status", "Progress", "Updated", "Message"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show these statuses")
	cmd.Flags().BoolVar(&clearFinished, "clear", false, "Forget completed, failed and cancelled jobs")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	return cmd
}

func renderBatchTable(jobs []api.BatchJob) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			orDash(job.Name),
			titleLabel(string(job.Status)),
			fmt.Sprintf("%d", len(job.Prompts)),
			formatProgress(job),
			formatWhen(job.CreatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Name", "Status", "Prompts", "Progress", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func printBatchDetail(cmd *cobra.Command, job api.BatchJob) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	fmt.Fprintln(out, renderField("ID", job.ID))
	fmt.Fprintln(out, renderField("Name", orDash(job.Name)))
	fmt.Fprintln(out, renderStatusLine("Status", batchStatusKind(job.Status), titleLabel(string(job.Status)), colorize))
	fmt.Fprintln(out, renderField("Progress", formatProgress(job)))
	fmt.Fprintln(out, renderField("Started", formatWhenPtr(job.StartedAt)))
	fmt.Fprintln(out, renderField("Completed", formatWhenPtr(job.CompletedAt)))
	if len(job.Prompts) == 0 {
		return
	}
	rows := make([][]string, 0, len(job.Prompts))
	for _, item := range job.Prompts {
		rows = append(rows, []string{
			snip(orDash(item.PromptText)),
			orDash(item.PromptID),
			fmt.Sprintf("%d", item.Count),
			fmt.Sprintf("%d", item.Completed),
			fmt.Sprintf("%d", item.Failed),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Prompt", "Prompt ID", "Count", "Done", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
	))
}

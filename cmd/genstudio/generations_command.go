package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"genstudio/internal/api"
	"genstudio/internal/state"
)

func newGenerationsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generations",
		Aliases: []string{"history"},
		Short:   "Browse generation history",
	}
	cmd.AddCommand(newGenerationsListCommand(ctx))
	cmd.AddCommand(newGenerationsShowCommand(ctx))
	cmd.AddCommand(newGenerationsDeleteCommand(ctx))
	return cmd
}

func newGenerationsListCommand(ctx *commandContext) *cobra.Command {
	var flags listFlags
	var prompt, status, dateFrom, dateTo, img2img string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				filters := filtersFrom(map[string]string{
					api.FilterPrompt:    prompt,
					api.FilterStatus:    status,
					api.FilterDateFrom:  dateFrom,
					api.FilterDateTo:    dateTo,
					api.FilterIsImg2Img: img2img,
				})
				if err := s.lists.Refresh(cmd.Context(), state.KindGenerations, filters, flags.page, flags.pageSize); err != nil {
					return s.fail(err)
				}
				block := s.store.Snapshot().Generations
				if flags.json {
					return writeJSON(cmd, block)
				}
				out := cmd.OutOrStdout()
				if len(block.List) == 0 {
					fmt.Fprintln(out, "No generations found")
					return nil
				}
				fmt.Fprintln(out, renderGenerationTable(block.List))
				fmt.Fprintln(out, pageFooter(block.Total, block.CurrentPage, block.PageSize, len(block.List)))
				return nil
			})
		},
	}

	bindListFlags(cmd, &flags)
	cmd.Flags().StringVar(&prompt, "prompt", "", "Filter by prompt text")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, succeeded, failed)")
	cmd.Flags().StringVar(&dateFrom, "from", "", "Only generations on or after YYYY-MM-DD")
	cmd.Flags().StringVar(&dateTo, "to", "", "Only generations on or before YYYY-MM-DD")
	cmd.Flags().StringVar(&img2img, "img2img", "", "Filter image-to-image generations (true or false)")
	return cmd
}

func newGenerationsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				gen, err := s.client.GetGeneration(cmd.Context(), args[0])
				if err != nil {
					return s.readFailed(err)
				}
				s.store.SetCurrentGeneration(&gen)
				if jsonOutput {
					return writeJSON(cmd, gen)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderField("ID", gen.ID))
				fmt.Fprintln(out, renderStatusLine("Status", generationStatusKind(gen.Status), gen.ErrorMessage, colorize))
				fmt.Fprintln(out, renderField("Prompt", gen.PromptText))
				fmt.Fprintln(out, renderField("Image-to-image", yesNo(gen.IsImg2Img)))
				fmt.Fprintln(out, renderField("Model", orDash(gen.GenerationParams.Model)))
				fmt.Fprintln(out, renderField("Size", orDash(gen.GenerationParams.Size)))
				fmt.Fprintln(out, renderField("Quality", orDash(gen.GenerationParams.Quality)))
				if gen.IsImg2Img {
					fmt.Fprintln(out, renderField("Strength", fmt.Sprintf("%.2f", gen.GenerationParams.Strength)))
				}
				fmt.Fprintln(out, renderField("Generation time", formatSeconds(gen.GenerationTime)))
				fmt.Fprintln(out, renderField("Image", orDash(gen.ImageURL)))
				if gen.BatchJobID != "" {
					fmt.Fprintln(out, renderField("Batch job", gen.BatchJobID))
				}
				fmt.Fprintln(out, renderField("Created", formatWhen(gen.CreatedAt)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}

func newGenerationsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				if err := s.orch.DeleteGeneration(cmd.Context(), args[0]); err != nil {
					return s.fail(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted generation %s\n", args[0])
				return nil
			})
		},
	}
}

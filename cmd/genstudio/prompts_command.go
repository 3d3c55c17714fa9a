package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"genstudio/internal/api"
	"genstudio/internal/state"
)

func newPromptsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prompts",
		Aliases: []string{"prompt"},
		Short:   "Manage the prompt library",
	}
	cmd.AddCommand(newPromptsListCommand(ctx))
	cmd.AddCommand(newPromptsShowCommand(ctx))
	cmd.AddCommand(newPromptsCreateCommand(ctx))
	cmd.AddCommand(newPromptsUpdateCommand(ctx))
	cmd.AddCommand(newPromptsDeleteCommand(ctx))
	cmd.AddCommand(newPromptsFavoriteCommand(ctx))
	cmd.AddCommand(newPromptsSearchCommand(ctx))
	cmd.AddCommand(newPromptsTaxonomyCommand(ctx, "categories", "List prompt categories"))
	cmd.AddCommand(newPromptsTaxonomyCommand(ctx, "tags", "List prompt tags"))
	return cmd
}

func newPromptsListCommand(ctx *commandContext) *cobra.Command {
	var flags listFlags
	var keyword, category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				filters := filtersFrom(map[string]string{
					api.FilterKeyword:  keyword,
					api.FilterCategory: category,
				})
				if err := s.lists.Refresh(cmd.Context(), state.KindPrompts, filters, flags.page, flags.pageSize); err != nil {
					return s.fail(err)
				}
				block := s.store.Snapshot().Prompts
				if flags.json {
					return writeJSON(cmd, block)
				}
				out := cmd.OutOrStdout()
				if len(block.List) == 0 {
					fmt.Fprintln(out, "No prompts found")
					return nil
				}
				fmt.Fprintln(out, renderPromptTable(block.List))
				fmt.Fprintln(out, pageFooter(block.Total, block.CurrentPage, block.PageSize, len(block.List)))
				return nil
			})
		},
	}

	bindListFlags(cmd, &flags)
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "Filter by keyword")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	return cmd
}

func newPromptsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				prompt, err := s.client.GetPrompt(cmd.Context(), args[0])
				if err != nil {
					return s.readFailed(err)
				}
				s.store.SetCurrentPrompt(&prompt)
				if jsonOutput {
					return writeJSON(cmd, prompt)
				}
				printPromptDetail(cmd, prompt)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}

type promptFlags struct {
	title    string
	content  string
	category string
	tags     []string
	favorite bool
}

func bindPromptFlags(cmd *cobra.Command, f *promptFlags) {
	cmd.Flags().StringVar(&f.title, "title", "", "Prompt title")
	cmd.Flags().StringVar(&f.content, "content", "", "Prompt text")
	cmd.Flags().StringVar(&f.category, "category", "", "Prompt category")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Tag (repeatable or comma separated)")
	cmd.Flags().BoolVar(&f.favorite, "favorite", false, "Mark as favourite")
}

// apply overlays the flags the user set onto in.
func (f promptFlags) apply(cmd *cobra.Command, in api.PromptInput) api.PromptInput {
	flags := cmd.Flags()
	if flags.Changed("title") {
		in.Title = strings.TrimSpace(f.title)
	}
	if flags.Changed("content") {
		in.Content = f.content
	}
	if flags.Changed("category") {
		in.Category = strings.TrimSpace(f.category)
	}
	if flags.Changed("tag") {
		in.Tags = cleanTags(f.tags)
	}
	if flags.Changed("favorite") {
		in.IsFavorite = f.favorite
	}
	return in
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func promptInputOf(p api.Prompt) api.PromptInput {
	return api.PromptInput{
		Title:      p.Title,
		Content:    p.Content,
		Category:   p.Category,
		Tags:       p.Tags,
		IsFavorite: p.IsFavorite,
	}
}

func newPromptsCreateCommand(ctx *commandContext) *cobra.Command {
	var flags promptFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Save a new prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				prompt, err := s.orch.CreatePrompt(cmd.Context(), flags.apply(cmd, api.PromptInput{Tags: []string{}}))
				if err != nil {
					return s.fail(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created prompt %s\n", prompt.ID)
				printPromptDetail(cmd, prompt)
				return nil
			})
		},
	}

	bindPromptFlags(cmd, &flags)
	return cmd
}

func newPromptsUpdateCommand(ctx *commandContext) *cobra.Command {
	var flags promptFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a saved prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				current, err := s.client.GetPrompt(cmd.Context(), args[0])
				if err != nil {
					return s.readFailed(err)
				}
				s.store.AddPrompt(current)
				prompt, err := s.orch.UpdatePrompt(cmd.Context(), current.ID, flags.apply(cmd, promptInputOf(current)))
				if err != nil {
					return s.fail(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated prompt %s\n", prompt.ID)
				printPromptDetail(cmd, prompt)
				return nil
			})
		},
	}

	bindPromptFlags(cmd, &flags)
	return cmd
}

func newPromptsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				if err := s.orch.DeletePrompt(cmd.Context(), args[0]); err != nil {
					return s.fail(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted prompt %s\n", args[0])
				return nil
			})
		},
	}
}

func newPromptsFavoriteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "favorite <id>",
		Aliases: []string{"fav"},
		Short:   "Toggle the favourite flag of a prompt",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				prompt, err := s.orch.ToggleFavorite(cmd.Context(), args[0])
				if err != nil {
					return s.fail(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Prompt %s favourite: %s\n", prompt.ID, yesNo(prompt.IsFavorite))
				return nil
			})
		},
	}
}

func newPromptsSearchCommand(ctx *commandContext) *cobra.Command {
	var flags listFlags
	var category string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Fuzzy search the current prompt page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				filters := filtersFrom(map[string]string{api.FilterCategory: category})
				if err := s.lists.Refresh(cmd.Context(), state.KindPrompts, filters, flags.page, flags.pageSize); err != nil {
					return s.fail(err)
				}
				matches := s.lists.SearchPrompts(strings.Join(args, " "))
				if flags.json {
					return writeJSON(cmd, matches)
				}
				out := cmd.OutOrStdout()
				if len(matches) == 0 {
					fmt.Fprintln(out, "No matching prompts")
					return nil
				}
				fmt.Fprintln(out, renderPromptTable(matches))
				return nil
			})
		},
	}

	bindListFlags(cmd, &flags)
	cmd.Flags().StringVar(&category, "category", "", "Limit the searched page to a category")
	return cmd
}

func newPromptsTaxonomyCommand(ctx *commandContext, use, short string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				if err := s.lists.RefreshTaxonomy(cmd.Context()); err != nil {
					return s.fail(err)
				}
				snap := s.store.Snapshot()
				values := snap.PromptCategories
				if use == "tags" {
					values = snap.PromptTags
				}
				if jsonOutput {
					return writeJSON(cmd, values)
				}
				out := cmd.OutOrStdout()
				if len(values) == 0 {
					fmt.Fprintf(out, "No %s defined\n", use)
					return nil
				}
				for _, value := range values {
					fmt.Fprintln(out, value)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}

func renderPromptTable(prompts []api.Prompt) string {
	rows := make([][]string, 0, len(prompts))
	for _, p := range prompts {
		rows = append(rows, []string{
			p.ID,
			favoriteMark(p),
			snip(orDash(p.Title)),
			titleLabel(p.Category),
			formatTags(p.Tags),
			fmt.Sprintf("%d", p.UsageCount),
			formatWhen(p.UpdatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "★", "Title", "Category", "Tags", "Uses", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func printPromptDetail(cmd *cobra.Command, p api.Prompt) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderField("ID", p.ID))
	fmt.Fprintln(out, renderField("Title", orDash(p.Title)))
	fmt.Fprintln(out, renderField("Category", titleLabel(p.Category)))
	fmt.Fprintln(out, renderField("Tags", formatTags(p.Tags)))
	fmt.Fprintln(out, renderField("Favourite", yesNo(p.IsFavorite)))
	fmt.Fprintln(out, renderField("Uses", fmt.Sprintf("%d", p.UsageCount)))
	fmt.Fprintln(out, renderField("Updated", formatWhen(p.UpdatedAt)))
	fmt.Fprintln(out, renderField("Content", p.Content))
}

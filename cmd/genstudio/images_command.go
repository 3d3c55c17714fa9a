package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"genstudio/internal/api"
	"genstudio/internal/state"
	"genstudio/internal/textutil"
)

func newImagesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "images",
		Aliases: []string{"image"},
		Short:   "Browse stored images",
	}
	cmd.AddCommand(newImagesListCommand(ctx))
	cmd.AddCommand(newImagesShowCommand(ctx))
	cmd.AddCommand(newImagesDeleteCommand(ctx))
	cmd.AddCommand(newImagesDownloadCommand(ctx))
	return cmd
}

func newImagesListCommand(ctx *commandContext) *cobra.Command {
	var flags listFlags
	var prompt string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List images",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				filters := filtersFrom(map[string]string{api.FilterPrompt: prompt})
				if err := s.lists.Refresh(cmd.Context(), state.KindImages, filters, flags.page, flags.pageSize); err != nil {
					return s.fail(err)
				}
				block := s.store.Snapshot().Images
				if flags.json {
					return writeJSON(cmd, block)
				}
				out := cmd.OutOrStdout()
				if len(block.List) == 0 {
					fmt.Fprintln(out, "No images found")
					return nil
				}
				rows := make([][]string, 0, len(block.List))
				for _, img := range block.List {
					rows = append(rows, []string{
						img.ID,
						orDash(img.Filename),
						formatDimensions(img.Width, img.Height),
						formatBytes(img.FileSize),
						snip(orDash(img.PromptText)),
						formatWhen(img.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "File", "Dimensions", "Size", "Prompt", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				fmt.Fprintln(out, pageFooter(block.Total, block.CurrentPage, block.PageSize, len(block.List)))
				return nil
			})
		},
	}

	bindListFlags(cmd, &flags)
	cmd.Flags().StringVar(&prompt, "prompt", "", "Filter by prompt text")
	return cmd
}

func newImagesShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show image metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				img, err := s.client.GetImage(cmd.Context(), args[0])
				if err != nil {
					return s.readFailed(err)
				}
				s.store.SetCurrentImage(&img)
				if jsonOutput {
					return writeJSON(cmd, img)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderField("ID", img.ID))
				fmt.Fprintln(out, renderField("File", orDash(img.Filename)))
				fmt.Fprintln(out, renderField("Original name", orDash(img.OriginalFilename)))
				fmt.Fprintln(out, renderField("Format", orDash(strings.ToUpper(img.Format))))
				fmt.Fprintln(out, renderField("Dimensions", formatDimensions(img.Width, img.Height)))
				fmt.Fprintln(out, renderField("Size", formatBytes(img.FileSize)))
				fmt.Fprintln(out, renderField("Prompt", orDash(img.PromptText)))
				fmt.Fprintln(out, renderField("Image-to-image", yesNo(img.IsImg2Img)))
				if img.GenerationID != "" {
					fmt.Fprintln(out, renderField("Generation", img.GenerationID))
				}
				fmt.Fprintln(out, renderField("Created", formatWhen(img.CreatedAt)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}

func newImagesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				if err := s.orch.DeleteImage(cmd.Context(), args[0]); err != nil {
					return s.fail(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted image %s\n", args[0])
				return nil
			})
		},
	}
}

func newImagesDownloadCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				id := args[0]
				var filename string
				if img, err := s.client.GetImage(cmd.Context(), id); err == nil {
					filename = img.Filename
				}
				name := textutil.DownloadName(filename, id)

				dir := s.cfg.Paths.DownloadDir
				if strings.TrimSpace(output) != "" {
					dir = filepath.Dir(output)
				}
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create download directory: %w", err)
				}

				tmp, err := os.CreateTemp(dir, ".download-*")
				if err != nil {
					return fmt.Errorf("create download file: %w", err)
				}
				defer os.Remove(tmp.Name())

				written, contentType, err := s.client.DownloadImage(cmd.Context(), id, tmp)
				if closeErr := tmp.Close(); err == nil && closeErr != nil {
					err = closeErr
				}
				if err != nil {
					return s.readFailed(err)
				}

				target := strings.TrimSpace(output)
				if target == "" {
					target = filepath.Join(dir, withExtension(name, contentType))
				}
				if err := os.Rename(tmp.Name(), target); err != nil {
					return fmt.Errorf("save image: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", target, formatBytes(written))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (defaults to paths.download_dir)")
	return cmd
}

// withExtension appends an extension derived from contentType when name has none.
func withExtension(name, contentType string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return name
	}
	switch mediaType {
	case "image/png":
		return name + ".png"
	case "image/jpeg":
		return name + ".jpg"
	case "image/webp":
		return name + ".webp"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return name + exts[0]
	}
	return name
}

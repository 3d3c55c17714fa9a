package main

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"genstudio/internal/api"
	"genstudio/internal/orchestrator"
)

type generateFlags struct {
	count   int
	size    string
	quality string
	model   string
	json    bool
}

func bindGenerateFlags(cmd *cobra.Command, f *generateFlags) {
	cmd.Flags().IntVarP(&f.count, "count", "n", 0, "Number of images (defaults to generation.default_count)")
	cmd.Flags().StringVar(&f.size, "size", "", "Image size, e.g. 1024x1024")
	cmd.Flags().StringVar(&f.quality, "quality", "", "Image quality")
	cmd.Flags().StringVar(&f.model, "model", "", "Model name")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print JSON instead of a table")
}

func (f generateFlags) params() api.GenerationParams {
	return api.GenerationParams{
		Model:   strings.TrimSpace(f.model),
		Size:    strings.TrimSpace(f.size),
		Quality: strings.TrimSpace(f.quality),
	}
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate images from a prompt",
	}
	cmd.AddCommand(newGenerateTextCommand(ctx))
	cmd.AddCommand(newGenerateImageCommand(ctx))
	return cmd
}

func newGenerateTextCommand(ctx *commandContext) *cobra.Command {
	var flags generateFlags

	cmd := &cobra.Command{
		Use:   "text <prompt>",
		Short: "Generate images from text",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(s *session) error {
				gens, err := s.orch.SubmitText2Img(cmd.Context(), orchestrator.Text2ImgInput{
					Prompt: strings.Join(args, " "),
					Count:  flags.count,
					Params: flags.params(),
				})
				if err != nil {
					return s.fail(err)
				}
				return printGenerations(cmd, gens, flags.json)
			})
		},
	}

	bindGenerateFlags(cmd, &flags)
	return cmd
}

func newGenerateImageCommand(ctx *commandContext) *cobra.Command {
	var flags generateFlags
	var sourcePath string
	var strength float64

	cmd := &cobra.Command{
		Use:   "image <prompt>",
		Short: "Generate images from a source image and text",
		RunE: func(cmd *cobra.Command, args []string) error {
			var source string
			if strings.TrimSpace(sourcePath) != "" {
				encoded, err := encodeSourceImage(sourcePath)
				if err != nil {
					return err
				}
				source = encoded
			}
			params := flags.params()
			if cmd.Flags().Changed("strength") {
				params.Strength = strength
			}
			return ctx.withSession(cmd, func(s *session) error {
				gens, err := s.orch.SubmitImg2Img(cmd.Context(), orchestrator.Img2ImgInput{
					Prompt:      strings.Join(args, " "),
					SourceImage: source,
					Count:       flags.count,
					Params:      params,
				})
				if err != nil {
					return s.fail(err)
				}
				return printGenerations(cmd, gens, flags.json)
			})
		},
	}

	bindGenerateFlags(cmd, &flags)
	cmd.Flags().StringVarP(&sourcePath, "source", "s", "", "Source image file")
	cmd.Flags().Float64Var(&strength, "strength", 0, "How far the result may drift from the source (0-1)")
	return cmd
}

// encodeSourceImage reads path into a base64 data URL.
func encodeSourceImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("read source image: %s is empty", path)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("source image %s is %s, not an image", path, contentType)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func printGenerations(cmd *cobra.Command, gens []api.Generation, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(cmd, gens)
	}
	out := cmd.OutOrStdout()
	if len(gens) == 0 {
		fmt.Fprintln(out, "No generations returned")
		return nil
	}
	fmt.Fprintln(out, renderGenerationTable(gens))
	return nil
}

func renderGenerationTable(gens []api.Generation) string {
	rows := make([][]string, 0, len(gens))
	for _, g := range gens {
		kind := "text"
		if g.IsImg2Img {
			kind = "image"
		}
		rows = append(rows, []string{
			g.ID,
			titleLabel(string(g.Status)),
			kind,
			snip(g.PromptText),
			orDash(g.GenerationParams.Size),
			formatSeconds(g.GenerationTime),
			orDash(g.ImageURL),
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Mode", "Prompt", "Size", "Time", "Image"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

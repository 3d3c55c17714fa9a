package orchestrator

import (
	"context"
	"strings"

	"genstudio/internal/api"
	"genstudio/internal/logging"
)

// Text2ImgInput is a text-to-image submission. Zero Params fields fall back
// to the store's generation settings; Count zero uses the default count.
type Text2ImgInput struct {
	Prompt string
	Count  int
	Params api.GenerationParams
}

// Img2ImgInput is an image-to-image submission. SourceImage is an encoded
// payload such as a base64 data URL.
type Img2ImgInput struct {
	Prompt      string
	SourceImage string
	Count       int
	Params      api.GenerationParams
}

// SubmitText2Img sends a text-to-image request. On success the returned
// generations are prepended to the generations block in response order and
// the total grows by their count. On failure the block is untouched and the
// global error is set; the returned error carries the same outcome for
// callers that need per-call feedback.
func (o *Orchestrator) SubmitText2Img(ctx context.Context, in Text2ImgInput) ([]api.Generation, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, o.reject(ctx, "text2img", "prompt", MsgPromptRequired)
	}
	req := api.Text2ImgRequest{
		Prompt: prompt,
		Count:  o.clampCount(in.Count),
		Params: o.params(in.Params, false),
	}

	var gens []api.Generation
	err := o.run(ctx, "text2img", MsgGenerationFailed, func(ctx context.Context) error {
		result, err := o.service.Text2Img(ctx, req)
		if err != nil {
			return err
		}
		gens = result
		o.store.AddGenerations(result)
		logging.WithContext(ctx, o.logger).Info("generation completed",
			logging.Int("requested", req.Count),
			logging.Int("returned", len(result)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return gens, nil
}

// SubmitImg2Img sends an image-to-image request with the same bracket as
// SubmitText2Img. Strength is only sent here.
func (o *Orchestrator) SubmitImg2Img(ctx context.Context, in Img2ImgInput) ([]api.Generation, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, o.reject(ctx, "img2img", "prompt", MsgPromptRequired)
	}
	source := strings.TrimSpace(in.SourceImage)
	if source == "" {
		return nil, o.reject(ctx, "img2img", "source_image", MsgSourceImageRequired)
	}
	req := api.Img2ImgRequest{
		Prompt:      prompt,
		SourceImage: source,
		Count:       o.clampCount(in.Count),
		Params:      o.params(in.Params, true),
	}

	var gens []api.Generation
	err := o.run(ctx, "img2img", MsgGenerationFailed, func(ctx context.Context) error {
		result, err := o.service.Img2Img(ctx, req)
		if err != nil {
			return err
		}
		gens = result
		o.store.AddGenerations(result)
		logging.WithContext(ctx, o.logger).Info("generation completed",
			logging.Int("requested", req.Count),
			logging.Int("returned", len(result)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return gens, nil
}

func (o *Orchestrator) params(in api.GenerationParams, img2img bool) api.GenerationParams {
	settings := o.store.Snapshot().Settings
	out := api.GenerationParams{
		Model:   firstNonEmpty(in.Model, settings.Model),
		Size:    firstNonEmpty(in.Size, settings.Size),
		Quality: firstNonEmpty(in.Quality, settings.Quality),
	}
	if img2img {
		out.Strength = in.Strength
		if out.Strength <= 0 {
			out.Strength = settings.Strength
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

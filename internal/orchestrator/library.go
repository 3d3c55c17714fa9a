package orchestrator

import (
	"context"
	"strings"

	"genstudio/internal/api"
)

// CreatePrompt stores a prompt and prepends it to the prompts block.
func (o *Orchestrator) CreatePrompt(ctx context.Context, in api.PromptInput) (api.Prompt, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return api.Prompt{}, o.reject(ctx, "create_prompt", "content", MsgPromptRequired)
	}
	var created api.Prompt
	err := o.run(ctx, "create_prompt", MsgOperationFailed, func(ctx context.Context) error {
		p, err := o.service.CreatePrompt(ctx, in)
		if err != nil {
			return err
		}
		created = p
		o.store.AddPrompt(p)
		return nil
	})
	return created, err
}

// UpdatePrompt replaces a prompt's writable fields.
func (o *Orchestrator) UpdatePrompt(ctx context.Context, id string, in api.PromptInput) (api.Prompt, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return api.Prompt{}, o.reject(ctx, "update_prompt", "content", MsgPromptRequired)
	}
	var updated api.Prompt
	err := o.run(ctx, "update_prompt", MsgOperationFailed, func(ctx context.Context) error {
		p, err := o.service.UpdatePrompt(ctx, id, in)
		if err != nil {
			return err
		}
		updated = p
		o.store.UpdatePrompt(p)
		return nil
	})
	return updated, err
}

// ToggleFavorite flips a prompt's favorite flag. The cached copy is used when
// present; otherwise the prompt is fetched first.
func (o *Orchestrator) ToggleFavorite(ctx context.Context, id string) (api.Prompt, error) {
	var updated api.Prompt
	err := o.run(ctx, "toggle_favorite", MsgOperationFailed, func(ctx context.Context) error {
		current, ok := o.store.Snapshot().Prompts.Find(id)
		if !ok {
			fetched, err := o.service.GetPrompt(ctx, id)
			if err != nil {
				return err
			}
			current = fetched
		}
		p, err := o.service.UpdatePrompt(ctx, id, api.PromptInput{
			Title:      current.Title,
			Content:    current.Content,
			Category:   current.Category,
			Tags:       current.Tags,
			IsFavorite: !current.IsFavorite,
		})
		if err != nil {
			return err
		}
		updated = p
		o.store.UpdatePrompt(p)
		return nil
	})
	return updated, err
}

// DeletePrompt removes a prompt remotely, then locally.
func (o *Orchestrator) DeletePrompt(ctx context.Context, id string) error {
	return o.run(ctx, "delete_prompt", MsgOperationFailed, func(ctx context.Context) error {
		if err := o.service.DeletePrompt(ctx, id); err != nil {
			return err
		}
		o.store.RemovePrompt(id)
		return nil
	})
}

// DeleteGeneration removes a generation record remotely, then locally.
func (o *Orchestrator) DeleteGeneration(ctx context.Context, id string) error {
	return o.run(ctx, "delete_generation", MsgOperationFailed, func(ctx context.Context) error {
		if err := o.service.DeleteGeneration(ctx, id); err != nil {
			return err
		}
		o.store.RemoveGeneration(id)
		return nil
	})
}

// DeleteImage removes a stored image remotely, then locally.
func (o *Orchestrator) DeleteImage(ctx context.Context, id string) error {
	return o.run(ctx, "delete_image", MsgOperationFailed, func(ctx context.Context) error {
		if err := o.service.DeleteImage(ctx, id); err != nil {
			return err
		}
		o.store.RemoveImage(id)
		return nil
	})
}

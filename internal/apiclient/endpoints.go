package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"genstudio/internal/api"
)

func idPath(prefix, id string, suffix ...string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("apiclient: id required")
	}
	parts := append([]string{prefix, url.PathEscape(id)}, suffix...)
	return strings.Join(parts, "/"), nil
}

// Health reports service status. The health endpoint may answer with either
// an envelope or a bare status object; both are accepted.
func (c *Client) Health(ctx context.Context) (api.HealthStatus, error) {
	resp, cancel, err := c.roundTrip(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return api.HealthStatus{}, err
	}
	defer cancel()
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return api.HealthStatus{}, c.transportFailure(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		te := &TransportError{Status: resp.StatusCode, Message: statusMessage(resp.StatusCode)}
		if env, perr := parseEnvelope(payload); perr == nil {
			te.Message = firstNonEmpty(env.Message, env.Error, te.Message)
			te.ServerMessage = firstNonEmpty(env.Message, env.Error)
		}
		return api.HealthStatus{}, te
	}
	if env, schemaErr := parseEnvelope(payload); schemaErr == nil {
		return Decode[api.HealthStatus](env)
	}
	var status api.HealthStatus
	if err := json.Unmarshal(payload, &status); err != nil || status.Status == "" {
		schemaErr := &SchemaError{Reason: "health payload has no status", Err: err}
		return api.HealthStatus{}, &TransportError{Status: resp.StatusCode, Message: schemaErr.Error(), Err: schemaErr}
	}
	return status, nil
}

// ListPrompts fetches one page of prompts.
func (c *Client) ListPrompts(ctx context.Context, page, pageSize int, filters api.Filters) (api.Page[api.Prompt], error) {
	return call[api.Page[api.Prompt]](ctx, c, http.MethodGet, "/prompts", nil, filters.Values(page, pageSize))
}

// GetPrompt fetches a single prompt.
func (c *Client) GetPrompt(ctx context.Context, id string) (api.Prompt, error) {
	path, err := idPath("/prompts", id)
	if err != nil {
		return api.Prompt{}, err
	}
	return call[api.Prompt](ctx, c, http.MethodGet, path, nil, nil)
}

// CreatePrompt stores a new prompt.
func (c *Client) CreatePrompt(ctx context.Context, in api.PromptInput) (api.Prompt, error) {
	return call[api.Prompt](ctx, c, http.MethodPost, "/prompts", in, nil)
}

// UpdatePrompt replaces the writable fields of a prompt.
func (c *Client) UpdatePrompt(ctx context.Context, id string, in api.PromptInput) (api.Prompt, error) {
	path, err := idPath("/prompts", id)
	if err != nil {
		return api.Prompt{}, err
	}
	return call[api.Prompt](ctx, c, http.MethodPut, path, in, nil)
}

// DeletePrompt removes a prompt.
func (c *Client) DeletePrompt(ctx context.Context, id string) error {
	return c.deleteByID(ctx, "/prompts", id)
}

// PromptCategories lists the distinct prompt categories.
func (c *Client) PromptCategories(ctx context.Context) ([]string, error) {
	return call[[]string](ctx, c, http.MethodGet, "/prompts/categories", nil, nil)
}

// PromptTags lists the distinct prompt tags.
func (c *Client) PromptTags(ctx context.Context) ([]string, error) {
	return call[[]string](ctx, c, http.MethodGet, "/prompts/tags", nil, nil)
}

// Text2Img submits a text-to-image request.
func (c *Client) Text2Img(ctx context.Context, req api.Text2ImgRequest) ([]api.Generation, error) {
	return call[[]api.Generation](ctx, c, http.MethodPost, "/generate/text2img", req, nil)
}

// Img2Img submits an image-to-image request.
func (c *Client) Img2Img(ctx context.Context, req api.Img2ImgRequest) ([]api.Generation, error) {
	return call[[]api.Generation](ctx, c, http.MethodPost, "/generate/img2img", req, nil)
}

// ListGenerations fetches one page of generation records.
func (c *Client) ListGenerations(ctx context.Context, page, pageSize int, filters api.Filters) (api.Page[api.Generation], error) {
	return call[api.Page[api.Generation]](ctx, c, http.MethodGet, "/generations", nil, filters.Values(page, pageSize))
}

// GetGeneration fetches a single generation record.
func (c *Client) GetGeneration(ctx context.Context, id string) (api.Generation, error) {
	path, err := idPath("/generations", id)
	if err != nil {
		return api.Generation{}, err
	}
	return call[api.Generation](ctx, c, http.MethodGet, path, nil, nil)
}

// DeleteGeneration removes a generation record.
func (c *Client) DeleteGeneration(ctx context.Context, id string) error {
	return c.deleteByID(ctx, "/generations", id)
}

// CreateBatch submits a batch job.
func (c *Client) CreateBatch(ctx context.Context, req api.CreateBatchRequest) (api.BatchJob, error) {
	return call[api.BatchJob](ctx, c, http.MethodPost, "/batch", req, nil)
}

// ListBatches fetches one page of batch jobs.
func (c *Client) ListBatches(ctx context.Context, page, pageSize int, filters api.Filters) (api.Page[api.BatchJob], error) {
	return call[api.Page[api.BatchJob]](ctx, c, http.MethodGet, "/batch", nil, filters.Values(page, pageSize))
}

// GetBatch fetches a full batch job including its prompt items.
func (c *Client) GetBatch(ctx context.Context, id string) (api.BatchJob, error) {
	path, err := idPath("/batch", id)
	if err != nil {
		return api.BatchJob{}, err
	}
	return call[api.BatchJob](ctx, c, http.MethodGet, path, nil, nil)
}

// BatchStatus fetches the progress summary of a batch job.
func (c *Client) BatchStatus(ctx context.Context, id string) (api.BatchJobStatus, error) {
	path, err := idPath("/batch", id, "status")
	if err != nil {
		return api.BatchJobStatus{}, err
	}
	return call[api.BatchJobStatus](ctx, c, http.MethodGet, path, nil, nil)
}

// CancelBatch asks the service to stop a batch job.
func (c *Client) CancelBatch(ctx context.Context, id string) error {
	path, err := idPath("/batch", id, "cancel")
	if err != nil {
		return err
	}
	_, err = call[json.RawMessage](ctx, c, http.MethodDelete, path, nil, nil)
	return err
}

// DeleteBatch removes a batch job.
func (c *Client) DeleteBatch(ctx context.Context, id string) error {
	return c.deleteByID(ctx, "/batch", id)
}

// ListImages fetches one page of stored images.
func (c *Client) ListImages(ctx context.Context, page, pageSize int, filters api.Filters) (api.Page[api.Image], error) {
	return call[api.Page[api.Image]](ctx, c, http.MethodGet, "/images", nil, filters.Values(page, pageSize))
}

// GetImage fetches image metadata.
func (c *Client) GetImage(ctx context.Context, id string) (api.Image, error) {
	path, err := idPath("/images", id)
	if err != nil {
		return api.Image{}, err
	}
	return call[api.Image](ctx, c, http.MethodGet, path, nil, nil)
}

// DeleteImage removes a stored image.
func (c *Client) DeleteImage(ctx context.Context, id string) error {
	return c.deleteByID(ctx, "/images", id)
}

// DownloadImage streams the image bytes into w.
func (c *Client) DownloadImage(ctx context.Context, id string, w io.Writer) (int64, string, error) {
	path, err := idPath("/images", id, "download")
	if err != nil {
		return 0, "", err
	}
	return c.Download(ctx, path, w)
}

func (c *Client) deleteByID(ctx context.Context, prefix, id string) error {
	path, err := idPath(prefix, id)
	if err != nil {
		return err
	}
	_, err = call[json.RawMessage](ctx, c, http.MethodDelete, path, nil, nil)
	return err
}

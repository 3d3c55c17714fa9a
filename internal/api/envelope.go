package api

import "encoding/json"

// Envelope is the uniform wrapper around every non-binary response.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HasData reports whether the envelope carries a non-null payload.
func (e Envelope) HasData() bool {
	trimmed := string(e.Data)
	return trimmed != "" && trimmed != "null"
}

// Pagination is the page bookkeeping attached to list payloads.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Page is a decoded list payload. The service keys the list by entity name,
// so every known key is accepted and Items returns whichever was present.
type Page[T any] struct {
	Pagination
	Prompts     []T `json:"prompts,omitempty"`
	Generations []T `json:"generations,omitempty"`
	Jobs        []T `json:"jobs,omitempty"`
	Images      []T `json:"images,omitempty"`
	Items       []T `json:"items,omitempty"`
}

// List returns the page entries regardless of which key carried them.
func (p Page[T]) List() []T {
	for _, candidate := range [][]T{p.Prompts, p.Generations, p.Jobs, p.Images, p.Items} {
		if candidate != nil {
			return candidate
		}
	}
	return nil
}

// Text2ImgRequest is the body of POST /generate/text2img.
type Text2ImgRequest struct {
	Prompt string           `json:"prompt"`
	Count  int              `json:"count,omitempty"`
	Params GenerationParams `json:"params"`
}

// Img2ImgRequest is the body of POST /generate/img2img. SourceImage is an
// encoded payload, typically a base64 data URL.
type Img2ImgRequest struct {
	Prompt      string           `json:"prompt"`
	SourceImage string           `json:"source_image"`
	Count       int              `json:"count,omitempty"`
	Params      GenerationParams `json:"params"`
}

// PromptInput is the writable subset of a Prompt.
type PromptInput struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	IsFavorite bool     `json:"is_favorite"`
}

// CreateBatchRequest is the body of POST /batch.
type CreateBatchRequest struct {
	Name    string            `json:"name,omitempty"`
	Prompts []BatchPromptItem `json:"prompts"`
}

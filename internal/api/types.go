package api

import "time"

// GenerationParams carries the model knobs sent with a generation request.
type GenerationParams struct {
	Model    string  `json:"model,omitempty"`
	Size     string  `json:"size,omitempty"`
	Quality  string  `json:"quality,omitempty"`
	Strength float64 `json:"strength,omitempty"`
}

// Prompt is a reusable prompt template stored by the service.
type Prompt struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	Tags       []string  `json:"tags"`
	IsFavorite bool      `json:"is_favorite"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Generation is a single image produced by a text-to-image or image-to-image request.
type Generation struct {
	ID               string           `json:"id"`
	PromptID         string           `json:"prompt_id,omitempty"`
	PromptText       string           `json:"prompt_text"`
	ImageURL         string           `json:"image_url"`
	ThumbnailURL     string           `json:"thumbnail_url"`
	GenerationParams GenerationParams `json:"generation_params"`
	Status           GenerationStatus `json:"status"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	GenerationTime   float64          `json:"generation_time"`
	BatchJobID       string           `json:"batch_job_id,omitempty"`
	IsImg2Img        bool             `json:"is_img2img"`
	SourceImageID    string           `json:"source_image_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// BatchPromptItem is one prompt inside a batch job. It never exists outside its job.
type BatchPromptItem struct {
	PromptID   string `json:"prompt_id,omitempty"`
	PromptText string `json:"prompt_text"`
	Count      int    `json:"count"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
}

// BatchJob groups several prompts into one tracked unit of progress.
type BatchJob struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Prompts         []BatchPromptItem `json:"prompts"`
	TotalImages     int               `json:"total_images"`
	CompletedImages int               `json:"completed_images"`
	FailedImages    int               `json:"failed_images"`
	Status          BatchStatus       `json:"status"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Settled returns the number of images that finished either way.
func (j BatchJob) Settled() int {
	return j.CompletedImages + j.FailedImages
}

// Progress returns the settled share of requested images in [0, 100].
func (j BatchJob) Progress() float64 {
	if j.TotalImages <= 0 {
		return 0
	}
	pct := float64(j.Settled()) / float64(j.TotalImages) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// ClampProgress trims completed/failed counts so they never exceed the total.
// Completed counts win over failures when both must shrink.
func (j *BatchJob) ClampProgress() {
	if j.TotalImages < 0 {
		j.TotalImages = 0
	}
	if j.CompletedImages < 0 {
		j.CompletedImages = 0
	}
	if j.FailedImages < 0 {
		j.FailedImages = 0
	}
	if j.CompletedImages > j.TotalImages {
		j.CompletedImages = j.TotalImages
	}
	if j.Settled() > j.TotalImages {
		j.FailedImages = j.TotalImages - j.CompletedImages
	}
}

// BatchJobStatus is the summary returned by GET /batch/:id/status.
type BatchJobStatus struct {
	JobID           string      `json:"job_id"`
	Status          BatchStatus `json:"status"`
	TotalImages     int         `json:"total_images"`
	CompletedImages int         `json:"completed_images"`
	FailedImages    int         `json:"failed_images"`
	Progress        float64     `json:"progress"`
	Message         string      `json:"message"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Image is stored image metadata.
type Image struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	FilePath         string    `json:"file_path"`
	ThumbnailPath    string    `json:"thumbnail_path"`
	FileSize         int64     `json:"file_size"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	Format           string    `json:"format"`
	GenerationID     string    `json:"generation_id,omitempty"`
	PromptText       string    `json:"prompt_text"`
	IsImg2Img        bool      `json:"is_img2img"`
	SourceImageID    string    `json:"source_image_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// HealthStatus is the payload of GET /health.
type HealthStatus struct {
	Status      string    `json:"status"`
	Service     string    `json:"service,omitempty"`
	Version     string    `json:"version,omitempty"`
	Environment string    `json:"environment,omitempty"`
	Time        time.Time `json:"time,omitempty"`
}

// Identity returns the prompt id.
func (p Prompt) Identity() string { return p.ID }

// Identity returns the generation id.
func (g Generation) Identity() string { return g.ID }

// Identity returns the batch job id.
func (j BatchJob) Identity() string { return j.ID }

// Identity returns the image id.
func (i Image) Identity() string { return i.ID }

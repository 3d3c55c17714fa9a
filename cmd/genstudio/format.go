package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"genstudio/internal/api"
)

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func formatWhenPtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatWhen(*t)
}

func formatBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

func formatProgress(job api.BatchJob) string {
	out := fmt.Sprintf("%d/%d", job.CompletedImages, job.TotalImages)
	if job.FailedImages > 0 {
		out += fmt.Sprintf(" (%d failed)", job.FailedImages)
	}
	return out + fmt.Sprintf(" %.0f%%", job.Progress())
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return strconv.FormatFloat(seconds, 'f', 1, 64) + "s"
}

func formatDimensions(width, height int) string {
	if width <= 0 || height <= 0 {
		return "-"
	}
	return fmt.Sprintf("%dx%d", width, height)
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, ", ")
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func favoriteMark(p api.Prompt) string {
	if p.IsFavorite {
		return "★"
	}
	return ""
}

package orchestrator

import (
	"context"
	"errors"
	"strings"

	"genstudio/internal/apiclient"
)

// User-facing messages.
const (
	MsgPromptRequired      = "请输入提示词"
	MsgSourceImageRequired = "请上传源图片"
	MsgGenerationFailed    = "生成失败"
	MsgOperationFailed     = "操作失败"
	MsgRequestCancelled    = "请求已取消"
)

// ValidationError is raised before any network call when input is unusable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// UserMessage reduces err to the single message placed into the global error.
// Server-provided messages win; transport failures without one fall back.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Message
	}
	if errors.Is(err, context.Canceled) {
		return MsgRequestCancelled
	}
	var te *apiclient.TransportError
	if errors.As(err, &te) {
		if msg := strings.TrimSpace(te.ServerMessage); msg != "" {
			return msg
		}
		return fallback
	}
	var appErr *apiclient.ApplicationError
	if errors.As(err, &appErr) {
		if msg := strings.TrimSpace(appErr.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(appErr.Detail); msg != "" {
			return msg
		}
	}
	return fallback
}

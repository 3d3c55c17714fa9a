package api

import "strings"

// BatchStatus represents the lifecycle of a batch job.
type BatchStatus string

const (
	BatchQueued    BatchStatus = "queued"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
	BatchCancelled BatchStatus = "cancelled"
)

var allBatchStatuses = []BatchStatus{
	BatchQueued,
	BatchRunning,
	BatchCompleted,
	BatchFailed,
	BatchCancelled,
}

var batchStatusAliases = map[string]BatchStatus{
	"queued":     BatchQueued,
	"pending":    BatchQueued,
	"running":    BatchRunning,
	"processing": BatchRunning,
	"completed":  BatchCompleted,
	"failed":     BatchFailed,
	"cancelled":  BatchCancelled,
	"canceled":   BatchCancelled,
}

var terminalBatchStatuses = map[BatchStatus]struct{}{
	BatchCompleted: {},
	BatchFailed:    {},
	BatchCancelled: {},
}

// AllBatchStatuses returns the ordered list of known batch statuses.
func AllBatchStatuses() []BatchStatus {
	cp := make([]BatchStatus, len(allBatchStatuses))
	copy(cp, allBatchStatuses)
	return cp
}

// ParseBatchStatus converts a service status string into a known BatchStatus.
func ParseBatchStatus(value string) (BatchStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "", false
	}
	status, ok := batchStatusAliases[normalized]
	return status, ok
}

// IsTerminal reports whether no further transitions are possible.
func (s BatchStatus) IsTerminal() bool {
	_, ok := terminalBatchStatuses[s]
	return ok
}

// GenerationStatus represents the state of a single generation record.
type GenerationStatus string

const (
	GenerationPending   GenerationStatus = "pending"
	GenerationSucceeded GenerationStatus = "succeeded"
	GenerationFailed    GenerationStatus = "failed"
)

var generationStatusAliases = map[string]GenerationStatus{
	"pending":    GenerationPending,
	"processing": GenerationPending,
	"succeeded":  GenerationSucceeded,
	"success":    GenerationSucceeded,
	"completed":  GenerationSucceeded,
	"failed":     GenerationFailed,
}

// ParseGenerationStatus converts a service status string into a known GenerationStatus.
func ParseGenerationStatus(value string) (GenerationStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "", false
	}
	status, ok := generationStatusAliases[normalized]
	return status, ok
}

// UnmarshalText folds legacy spellings into the canonical status. Unknown
// values are kept verbatim so they can still be displayed.
func (s *BatchStatus) UnmarshalText(text []byte) error {
	if parsed, ok := ParseBatchStatus(string(text)); ok {
		*s = parsed
		return nil
	}
	*s = BatchStatus(strings.TrimSpace(string(text)))
	return nil
}

// UnmarshalText folds legacy spellings into the canonical status.
func (s *GenerationStatus) UnmarshalText(text []byte) error {
	if parsed, ok := ParseGenerationStatus(string(text)); ok {
		*s = parsed
		return nil
	}
	*s = GenerationStatus(strings.TrimSpace(string(text)))
	return nil
}

// ServiceValue returns the spelling the service expects in query filters.
func (s BatchStatus) ServiceValue() string {
	switch s {
	case BatchQueued:
		return "pending"
	case BatchRunning:
		return "processing"
	default:
		return string(s)
	}
}

// ServiceValue returns the spelling the service expects in query filters.
func (s GenerationStatus) ServiceValue() string {
	if s == GenerationSucceeded {
		return "completed"
	}
	return string(s)
}

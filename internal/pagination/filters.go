package pagination

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"genstudio/internal/api"
	"genstudio/internal/state"
)

var allowedFilters = map[state.Kind][]string{
	state.KindPrompts:     {api.FilterKeyword, api.FilterCategory},
	state.KindGenerations: {api.FilterPrompt, api.FilterStatus, api.FilterDateFrom, api.FilterDateTo, api.FilterIsImg2Img},
	state.KindBatchJobs:   {api.FilterStatus},
	state.KindImages:      {api.FilterPrompt},
}

// AllowedFilters lists the filter keys a kind accepts.
func AllowedFilters(kind state.Kind) []string {
	keys := append([]string(nil), allowedFilters[kind]...)
	sort.Strings(keys)
	return keys
}

// normalizeFilters drops blanks, rejects keys the kind does not support and
// rewrites values into the spelling the service expects.
func normalizeFilters(kind state.Kind, in api.Filters) (api.Filters, error) {
	allowed, ok := allowedFilters[kind]
	if !ok {
		return nil, fmt.Errorf("unknown list kind %q", kind)
	}
	out := in.Clone()
	for key, value := range out {
		if !contains(allowed, key) {
			return nil, fmt.Errorf("filter %q is not supported for %s (allowed: %s)", key, kind, strings.Join(AllowedFilters(kind), ", "))
		}
		switch key {
		case api.FilterStatus:
			out[key] = statusValue(kind, value)
		case api.FilterDateFrom, api.FilterDateTo:
			if _, err := time.Parse(time.DateOnly, value); err != nil {
				return nil, fmt.Errorf("filter %s: expected YYYY-MM-DD, got %q", key, value)
			}
		case api.FilterIsImg2Img:
			switch strings.ToLower(value) {
			case "true", "1", "yes":
				out[key] = "true"
			case "false", "0", "no":
				out[key] = "false"
			default:
				return nil, fmt.Errorf("filter %s: expected true or false, got %q", key, value)
			}
		}
	}
	return out, nil
}

func statusValue(kind state.Kind, value string) string {
	switch kind {
	case state.KindBatchJobs:
		if status, ok := api.ParseBatchStatus(value); ok {
			return status.ServiceValue()
		}
	case state.KindGenerations:
		if status, ok := api.ParseGenerationStatus(value); ok {
			return status.ServiceValue()
		}
	}
	return value
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

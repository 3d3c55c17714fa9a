package main

import (
	"strings"

	"github.com/spf13/cobra"

	"genstudio/internal/api"
)

type listFlags struct {
	page     int
	pageSize int
	json     bool
}

func bindListFlags(cmd *cobra.Command, f *listFlags) {
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number to fetch")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Entries per page (defaults to pagination.page_size)")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print JSON instead of a table")
}

// filtersFrom collects non-empty flag values into service filters.
func filtersFrom(pairs map[string]string) api.Filters {
	out := api.Filters{}
	for key, value := range pairs {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out[key] = trimmed
		}
	}
	return out
}

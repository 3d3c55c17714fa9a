package api

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Filter keys accepted by the list endpoints.
const (
	FilterKeyword   = "keyword"
	FilterCategory  = "category"
	FilterPrompt    = "prompt"
	FilterStatus    = "status"
	FilterDateFrom  = "date_from"
	FilterDateTo    = "date_to"
	FilterIsImg2Img = "is_img2img"
)

// Filters holds list query filters keyed by their wire name. Empty values are dropped.
type Filters map[string]string

// Clone returns an independent copy with blank entries removed.
func (f Filters) Clone() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

// Key returns a stable string form usable as a cache or de-duplication key.
func (f Filters) Key() string {
	keys := make([]string, 0, len(f))
	for k, v := range f {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.TrimSpace(f[k]))
	}
	return b.String()
}

// Values renders filters plus paging as query parameters.
func (f Filters) Values(page, pageSize int) url.Values {
	values := url.Values{}
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		values.Set("page_size", strconv.Itoa(pageSize))
	}
	for k, v := range f {
		if v = strings.TrimSpace(v); v != "" {
			values.Set(k, v)
		}
	}
	return values
}

package textutil

import (
	"path"
	"strings"
)

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName reduces name to a single safe path element. Directory
// components are dropped, unsafe characters are replaced or removed and
// leading dots are trimmed so the result is never hidden or a parent
// reference. It returns "" when nothing usable remains.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "/" || name == "." || name == ".." {
		return ""
	}
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	name = strings.TrimLeft(name, ". ")
	return name
}

// SanitizeToken converts value to a lowercase token made of letters, digits,
// hyphens and underscores. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// DownloadName picks the local file name for a stored image: the sanitized
// server filename when usable, otherwise a token built from id.
func DownloadName(filename, id string) string {
	if name := SanitizeFileName(filename); name != "" {
		return name
	}
	return "image-" + SanitizeToken(id)
}

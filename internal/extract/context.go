// File: internal/extract/context.go
package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	labelSanitizer     = regexp.MustCompile(`[^A-Za-z0-9-]`)
	fileNameSanitizer  = regexp.MustCompile(`[^A-Za-z0-9\-_]`)
	titleWordSplitter  = regexp.MustCompile(`[\s|—\-:]+`)
	maxLabelLength     = 60
	maxFileLabelLength = 40
)

// PageLabel derives a short slug for tagging extracted data: domain short
// name, up to two trailing URL path segments, and the first few title words.
func PageLabel(pageURL, title string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}

	var pathParts []string
	for _, p := range strings.Split(strings.Trim(parsed.Path, "/"), "/") {
		if p != "" {
			pathParts = append(pathParts, p)
		}
	}
	pathSlug := parsed.Hostname()
	if len(pathParts) > 0 {
		start := 0
		if len(pathParts) > 2 {
			start = len(pathParts) - 2
		}
		pathSlug = strings.Join(pathParts[start:], "-")
	}
	if pathSlug == "" {
		pathSlug = "page"
	}

	var titleSlug string
	if words := titleWordSplitter.Split(strings.TrimSpace(title), -1); len(words) > 0 {
		end := len(words)
		if end > 3 {
			end = 3
		}
		titleSlug = strings.Join(words[:end], "-")
		titleSlug = strings.Trim(titleSlug, "-")
	}

	domain := strings.TrimPrefix(parsed.Hostname(), "www.")
	domainShort := domain
	if i := strings.IndexByte(domain, '.'); i > 0 {
		domainShort = domain[:i]
	}

	var label string
	switch {
	case titleSlug != "" && pathSlug != "":
		label = domainShort + "-" + pathSlug + "-" + titleSlug
	case pathSlug != "":
		label = domainShort + "-" + pathSlug
	case domainShort != "":
		label = domainShort
	default:
		label = "page"
	}

	label = labelSanitizer.ReplaceAllString(label, "")
	if len(label) > maxLabelLength {
		label = label[:maxLabelLength]
	}
	if label == "" {
		label = "page"
	}
	return label
}

// FileLabel sanitizes a label for use in a file name.
func FileLabel(label string) string {
	out := fileNameSanitizer.ReplaceAllString(label, "_")
	if len(out) > maxFileLabelLength {
		out = out[:maxFileLabelLength]
	}
	return out
}

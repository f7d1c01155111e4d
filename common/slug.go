package common

import (
	"errors"
	"regexp"
	"strings"
)

// Workspace slugs appear in dashboard URLs; keep them short.
const maxSlugLen = 48

var (
	ErrEmptySlug = errors.New("slug cannot be empty")

	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify derives a URL-safe slug from a display name, falling back to
// the given string (typically the record id) when the name has no
// usable characters.
func Slugify(name, fallback string) (string, error) {
	slug := normalize(name)
	if slug == "" {
		slug = normalize(fallback)
	}
	if slug == "" {
		return "", ErrEmptySlug
	}
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	return slug, nil
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlugChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

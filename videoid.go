package main

import (
	"fmt"
	"net/url"
	"strings"
)

// ExtractVideoID returns the 11-character YouTube video id from raw
// input, which may be a bare id or a URL in any of the common forms:
// watch?v=, youtu.be/, embed/, shorts/, v/.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty video id", ErrInvalidInput)
	}
	if isVideoID(raw) {
		return raw, nil
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a video id or URL", ErrInvalidInput, raw)
	}

	var candidate string
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtu.be":
		candidate = firstPathSegment(u.Path)
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			candidate = v
			break
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				candidate = firstPathSegment(strings.TrimPrefix(u.Path, prefix))
				break
			}
		}
	}

	if !isVideoID(candidate) {
		return "", fmt.Errorf("%w: no video id found in %q", ErrInvalidInput, raw)
	}
	return candidate, nil
}

func firstPathSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

// isVideoID reports whether s matches the video id format: exactly
// 11 characters out of [A-Za-z0-9_-].
func isVideoID(s string) bool {
	if len(s) != 11 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

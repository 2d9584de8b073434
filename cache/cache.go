package cache

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// entityTag returns a strong ETag for body.
func entityTag(body []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
}

// matchesETag reports whether an If-None-Match header value selects etag.
// Weak validators compare equal to their strong form.
func matchesETag(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}

package observability

import (
	"net/http"
	"strings"
)

const (
	maxRouteLength  = 256
	maxUserIDLength = 128
)

// SanitizeMethod normalises the HTTP method for log fields.
func SanitizeMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodTrace:
		return method
	default:
		return "UNKNOWN"
	}
}

// SanitizeRoute strips control characters and truncates route patterns before logging.
func SanitizeRoute(route string) string {
	return sanitizeString(route, maxRouteLength)
}

// SanitizeUserID bounds user identifiers used as log fields.
func SanitizeUserID(userID string) string {
	return sanitizeString(userID, maxUserIDLength)
}

func sanitizeString(value string, limit int) string {
	value = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, value)
	value = strings.TrimSpace(value)
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}

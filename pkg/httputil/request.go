package httputil

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const (
	MaxBodySize = 1 << 20 // 1MB
)

func ReadJsonBody(r *http.Request, dst interface{}) error {
	if r.Body == http.NoBody {
		return nil
	}

	d := json.NewDecoder(io.LimitReader(r.Body, MaxBodySize))

	return d.Decode(dst)
}

// RealIP prefers proxy headers over the socket address.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

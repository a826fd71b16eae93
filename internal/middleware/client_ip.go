package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/hitoshi/quickstore/internal/audit"
)

// ClientIP はリクエスト元IPアドレスを監査用コンテキストに注入するミドルウェア。
// X-Forwarded-Forの先頭エントリを優先し、なければRemoteAddrを使用する。
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPFromRequest(r)
		ctx := audit.ContextWithIPAddress(r.Context(), ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

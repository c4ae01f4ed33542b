package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// corsMaxAge はプリフライト結果のキャッシュ期間。
const corsMaxAge = 24 * time.Hour

// NewCORSMiddleware は単一オリジンを許可するCORSミドルウェアを返す。
// Cookieを送るためワイルドカードは使わない。OPTIONSは204で応答し後続を呼ばない。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	headers := map[string]string{
		"Access-Control-Allow-Origin":      allowedOrigin,
		"Access-Control-Allow-Methods":     strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", "),
		"Access-Control-Allow-Headers":     strings.Join([]string{"Content-Type", csrfHeaderName}, ", "),
		"Access-Control-Allow-Credentials": "true",
		"Access-Control-Max-Age":           strconv.Itoa(int(corsMaxAge.Seconds())),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range headers {
				h.Set(k, v)
			}
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

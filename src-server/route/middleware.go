package route

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

type messageRespBody struct {
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(messageRespBody{Message: message}); err != nil {
		slog.Warn("can't write response body", "error", err)
	}
}

// Answers preflight requests and stamps responses with the CORS headers.
// allowOrigin is "*" for any origin or a comma separated list of origins.
func CorsMiddleware(allowOrigin string, next http.Handler) http.Handler {
	origins := []string{}
	for _, origin := range strings.Split(allowOrigin, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}).Handler(next)
}

// Global token bucket in front of a handler; a nil limiter lets everything through.
func RateLimitMiddleware(limiter *rate.Limiter, next func(http.ResponseWriter, *http.Request)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter != nil && !limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeMessage(w, http.StatusTooManyRequests, "Too many requests, please slow down.")
			return
		}
		next(w, r)
	}
}

package http

import (
	stdhttp "net/http"

	"github.com/rs/cors"
)

const corsMaxAge = 10 * 60

// corsHandler wraps the mux rather than running as Huma middleware because preflight requests
// never reach a Huma operation.
func corsHandler(origins []string, next stdhttp.Handler) stdhttp.Handler {
	if len(origins) == 0 {
		return next
	}

	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodPut,
			stdhttp.MethodPatch, stdhttp.MethodDelete,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Retry-After", "X-Request-ID"},
		MaxAge:         corsMaxAge,
	}).Handler(next)
}

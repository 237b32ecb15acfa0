package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/edmondie/rabit/pkg/metrics"
	"github.com/edmondie/rabit/pkg/pagination"
	"github.com/edmondie/rabit/pkg/request"
	"github.com/edmondie/rabit/pkg/stream"
	"github.com/rs/zerolog/log"
)

// serverIdentity is reported by GET /health.
const serverIdentity = "Rabit, a product of Edmondie.com"

// maxBodyBytes bounds the POST /scrape body.
const maxBodyBytes = 1 << 20

// newServer wires the HTTP routes.
func newServer(driver *pagination.Driver) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("POST /scrape", scrapeHandler(driver))
	mux.Handle("GET /metrics", metrics.Handler())
	return withCORS(mux)
}

// withCORS adds permissive CORS headers to every response and answers
// preflight requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, PUT, DELETE")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Allow-Private-Network", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	Server    string `json:"server"`
	Timestamp string `json:"timestamp"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:    "ok",
		Server:    serverIdentity,
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}

// scrapeHandler streams one scrape as server-sent events. The stream is
// opened before the body is decoded so every failure reaches the client
// as an error event.
func scrapeHandler(driver *pagination.Driver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With().Str("component", "server").Logger()

		stream.SetHeaders(w.Header())
		w.WriteHeader(http.StatusOK)
		sink := stream.NewSSEWriter(w)

		var req request.ScrapeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			logger.Warn().Err(err).Msg("Malformed scrape request body")
			_ = sink.Emit(stream.KindError, stream.Error{Message: "invalid request body"})
			return
		}

		logger.Info().
			Str("country", req.Country).
			Str("degree", req.Degree).
			Strs("fields", req.Fields).
			Ints("range", req.Range).
			Msg("Scrape request received")

		if err := driver.Run(r.Context(), req, sink); err != nil {
			if r.Context().Err() != nil {
				logger.Warn().Err(err).Msg("Client disconnected mid-stream")
				return
			}
			logger.Debug().Err(err).Msg("Scrape ended with error")
		}
	}
}

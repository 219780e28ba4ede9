package main

import (
	"encoding/json"
	"errors"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/kwv/geofit/survey"
)

// maxRegisterBody bounds POST /register payloads
const maxRegisterBody = 8 << 20

// registerRequest is the body of POST /register. Options replaces the
// configured registration section when present.
type registerRequest struct {
	Real    []survey.LabeledPoint      `json:"real"`
	Ideal   []survey.LabeledPoint      `json:"ideal"`
	Options *survey.RegistrationConfig `json:"options,omitempty"`
}

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(store *survey.ResultStore, config *survey.Config, publisher *survey.Publisher) http.Handler {
	if config == nil {
		config = survey.DefaultConfig()
	}
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			HasResult bool      `json:"hasResult"`
			Runs      int       `json:"runs"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			HasResult: store.Latest() != nil,
			Runs:      store.Runs(),
		}
		writeJSON(w, http.StatusOK, status)
	})

	mux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegisterBody))
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		opts := config.Registration
		if req.Options != nil {
			opts = *req.Options
		}
		if err := opts.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := survey.Register(req.Real, req.Ideal, opts.FilterConfig())
		if err != nil {
			log.Printf("[HTTP] /register failed: %v", err)
			http.Error(w, err.Error(), registerErrorStatus(err))
			return
		}
		store.Set(result)

		if publisher != nil {
			if err := publisher.PublishResult(result); err != nil {
				log.Printf("Error publishing result %s: %v", result.RunID, err)
			}
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("GET /result.json", func(w http.ResponseWriter, r *http.Request) {
		result := store.Latest()
		if result == nil {
			http.Error(w, "No result available", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("GET /result.svg", func(w http.ResponseWriter, r *http.Request) {
		result := store.Latest()
		if result == nil {
			http.Error(w, "No result available", http.StatusServiceUnavailable)
			return
		}
		renderer := survey.NewVectorRenderer()
		renderer.GridSpacing = config.Output.GridSpacing

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToSVG(w, result.Report); err != nil {
			log.Printf("Error rendering result SVG: %v", err)
		}
	})

	mux.HandleFunc("GET /result.png", func(w http.ResponseWriter, r *http.Request) {
		result := store.Latest()
		if result == nil {
			http.Error(w, "No result available", http.StatusServiceUnavailable)
			return
		}
		img := survey.NewRasterRenderer().Render(result.Report)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := png.Encode(w, img); err != nil {
			log.Printf("Error encoding result PNG: %v", err)
		}
	})

	mux.HandleFunc("GET /residuals.png", func(w http.ResponseWriter, r *http.Request) {
		result := store.Latest()
		if result == nil {
			http.Error(w, "No result available", http.StatusServiceUnavailable)
			return
		}
		p, err := survey.ResidualChart(result.Report, config.Registration.ResidualThreshold)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := survey.WriteChart(w, p, "png"); err != nil {
			log.Printf("Error encoding residual chart: %v", err)
		}
	})

	return mux
}

// registerErrorStatus maps pipeline errors to HTTP status codes
func registerErrorStatus(err error) int {
	switch {
	case errors.Is(err, survey.ErrDuplicateLabel),
		errors.Is(err, survey.ErrInsufficientData),
		errors.Is(err, survey.ErrDegenerateConfiguration):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

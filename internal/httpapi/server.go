// Package httpapi exposes the task API: synchronous-looking submit endpoints
// over the asynchronous bot conversation, plus fetch, list, health and
// metrics.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/entari/mjbridge/internal/observability"
	"github.com/entari/mjbridge/internal/service"
)

var errEmptyBody = errors.New("request body is empty")

type Server struct {
	svc     *service.Service
	metrics *observability.Metrics
}

func New(svc *service.Service, metrics *observability.Metrics) *Server {
	return &Server{svc: svc, metrics: metrics}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/submit/imagine", s.handleSubmitImagine)
	r.Post("/submit/change", s.handleSubmitChange)
	r.Post("/submit/simple-change", s.handleSubmitSimpleChange)
	r.Post("/submit/describe", s.handleSubmitDescribe)
	r.Get("/task/{id}/fetch", s.handleFetchTask)
	r.Get("/task/list", s.handleListTasks)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

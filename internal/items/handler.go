package items

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Andrew920528/vibe-30/internal/api/respond"
	"github.com/Andrew920528/vibe-30/internal/model"
)

// Repository is what the handler needs from storage.
type Repository interface {
	List(ctx context.Context) ([]model.Item, error)
	Create(ctx context.Context, name string) (int64, error)
}

type Handler struct {
	repo Repository
	log  zerolog.Logger
}

func NewHandler(repo Repository, log zerolog.Logger) *Handler {
	return &Handler{repo: repo, log: log}
}

type errorBody struct {
	Error string `json:"error"`
}

type created struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// List GET /api/items
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.repo.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list items")
		respond.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// Create POST /api/items
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	// A malformed body is treated like a missing name.
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Name == "" {
		respond.WriteJSON(w, http.StatusBadRequest, errorBody{Error: "Name is required"})
		return
	}
	id, err := h.repo.Create(r.Context(), req.Name)
	if err != nil {
		h.log.Error().Err(err).Msg("create item")
		respond.WriteJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	respond.WriteJSON(w, http.StatusOK, created{ID: id, Name: req.Name})
}

// NewRouter serves the items endpoints with permissive CORS.
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/items", h.List).Methods("GET")
	r.HandleFunc("/api/items", h.Create).Methods("POST")
	return cors(r)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

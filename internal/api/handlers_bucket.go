package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Andrew920528/vibe-30/internal/api/respond"
	"github.com/Andrew920528/vibe-30/internal/api/validate"
	"github.com/Andrew920528/vibe-30/internal/auth"
	"github.com/Andrew920528/vibe-30/internal/model"
	"github.com/Andrew920528/vibe-30/internal/services"
)

// BucketHandler is a thin HTTP transport over BucketService. The owner always
// comes from the authenticated principal, never from the path or body.
type BucketHandler struct {
	svc *services.BucketService
}

func NewBucketHandler(svc *services.BucketService) *BucketHandler { return &BucketHandler{svc: svc} }

type addActivityRequest struct {
	Text        string  `json:"text"`
	Description *string `json:"description,omitempty"`
}

// ListBuckets GET /api/buckets
func (h *BucketHandler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	bs, err := h.svc.ListBuckets(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	if bs == nil {
		bs = []*model.Bucket{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"buckets": bs, "count": len(bs)})
}

// CreateBucket POST /api/buckets
func (h *BucketHandler) CreateBucket(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBucketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.CreateBucket(req); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	b, err := h.svc.CreateBucket(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, b)
}

// GetBucket GET /api/buckets/{bucketId}
func (h *BucketHandler) GetBucket(w http.ResponseWriter, r *http.Request) {
	bucketID, ok := pathID(w, r, "bucketId")
	if !ok {
		return
	}
	b, err := h.svc.GetBucket(r.Context(), auth.UserID(r.Context()), bucketID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, b)
}

// UpdateBucket PATCH /api/buckets/{bucketId}
func (h *BucketHandler) UpdateBucket(w http.ResponseWriter, r *http.Request) {
	bucketID, ok := pathID(w, r, "bucketId")
	if !ok {
		return
	}
	var req model.UpdateBucketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.UpdateBucket(req); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	b, err := h.svc.UpdateBucket(r.Context(), auth.UserID(r.Context()), bucketID, req)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, b)
}

// DeleteBucket DELETE /api/buckets/{bucketId}
func (h *BucketHandler) DeleteBucket(w http.ResponseWriter, r *http.Request) {
	bucketID, ok := pathID(w, r, "bucketId")
	if !ok {
		return
	}
	if err := h.svc.DeleteBucket(r.Context(), auth.UserID(r.Context()), bucketID); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddActivity POST /api/buckets/{bucketId}/activities
func (h *BucketHandler) AddActivity(w http.ResponseWriter, r *http.Request) {
	bucketID, ok := pathID(w, r, "bucketId")
	if !ok {
		return
	}
	var req addActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.Activity(req.Text, req.Description); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	a, err := h.svc.AddActivity(r.Context(), auth.UserID(r.Context()), bucketID, req.Text, req.Description)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, a)
}

// RemoveActivity DELETE /api/activities/{activityId}
func (h *BucketHandler) RemoveActivity(w http.ResponseWriter, r *http.Request) {
	activityID, ok := pathID(w, r, "activityId")
	if !ok {
		return
	}
	if err := h.svc.RemoveActivity(r.Context(), auth.UserID(r.Context()), activityID); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DrawActivity POST /api/buckets/{bucketId}/draw
func (h *BucketHandler) DrawActivity(w http.ResponseWriter, r *http.Request) {
	bucketID, ok := pathID(w, r, "bucketId")
	if !ok {
		return
	}
	a, err := h.svc.DrawActivity(r.Context(), auth.UserID(r.Context()), bucketID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, a)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := mux.Vars(r)[name]
	if err := validate.ID(name, id); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return "", false
	}
	return id, true
}

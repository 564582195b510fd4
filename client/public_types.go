package client

import "github.com/Andrew920528/vibe-30/internal/model"

// Wire types shared with the server.
type (
	Bucket              = model.Bucket
	Activity            = model.Activity
	NewActivity         = model.NewActivity
	CreateBucketRequest = model.CreateBucketRequest
	UpdateBucketRequest = model.UpdateBucketRequest
)

// HealthStatus is the body of GET /api/health.
type HealthStatus struct {
	Status    string   `json:"status"`
	Down      []string `json:"down"`
	Timestamp string   `json:"timestamp"`
}

func (h HealthStatus) Healthy() bool { return h.Status == "healthy" }

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Andrew920528/vibe-30/internal/api/recovery"
	"github.com/Andrew920528/vibe-30/internal/auth"
	"github.com/Andrew920528/vibe-30/internal/services"
)

// RouterDeps collects what NewRouter wires into handlers.
type RouterDeps struct {
	Buckets *services.BucketService
	Auth    auth.Authenticator
	Health  ServiceHealth
	Log     zerolog.Logger
}

// NewRouter builds the bucket API. Everything under /api except the health
// probe requires a bearer token.
func NewRouter(d RouterDeps) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware(d.Log), withLogging(d.Log))

	healthHandler := NewHealthHandler(d.Health)
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	root.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := root.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.Middleware(d.Auth, nil))

	// Buckets
	bucket := NewBucketHandler(d.Buckets)
	apiRouter.HandleFunc("/buckets", bucket.ListBuckets).Methods("GET")
	apiRouter.HandleFunc("/buckets", bucket.CreateBucket).Methods("POST")
	apiRouter.HandleFunc("/buckets/{bucketId}", bucket.GetBucket).Methods("GET")
	apiRouter.HandleFunc("/buckets/{bucketId}", bucket.UpdateBucket).Methods("PATCH")
	apiRouter.HandleFunc("/buckets/{bucketId}", bucket.DeleteBucket).Methods("DELETE")

	// Activities
	apiRouter.HandleFunc("/buckets/{bucketId}/activities", bucket.AddActivity).Methods("POST")
	apiRouter.HandleFunc("/activities/{activityId}", bucket.RemoveActivity).Methods("DELETE")
	apiRouter.HandleFunc("/buckets/{bucketId}/draw", bucket.DrawActivity).Methods("POST")

	return root
}

func withLogging(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("elapsed", time.Since(start)).
				Msg("http")
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }

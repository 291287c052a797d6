package handlers

import (
	"context"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type ReadyResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func ReadyHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := ReadyResponse{
			Status:   "ready",
			Database: "ok",
			Redis:    "ok",
		}

		// Check database connection
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		sqlDB, err := deps.Conns.DB.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			response.Database = "error"
			response.Status = "not ready"
		}

		// Check Redis connection
		if err := deps.Conns.Redis.Ping(ctx); err != nil {
			response.Redis = "error"
			response.Status = "not ready"
		}

		status := http.StatusOK
		if response.Status != "ready" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	}
}

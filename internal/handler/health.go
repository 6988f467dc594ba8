package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/zhouzirui/heartwise/backend/pkg/utils"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is the result of probing one dependency.
type Check struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status   string           `json:"status"`
	Sessions int              `json:"sessions"`
	Checks   map[string]Check `json:"checks,omitempty"`
}

type healthHandler struct {
	sessions func() int
	archive  Pinger
	name     string
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Sessions: h.sessions()}
	statusCode := http.StatusOK

	if h.archive != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		start := time.Now()
		if err := h.archive.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks = map[string]Check{h.name: {Status: "fail", Message: "connection failed"}}
			statusCode = http.StatusServiceUnavailable
		} else {
			resp.Checks = map[string]Check{h.name: {Status: "pass", Latency: time.Since(start).String()}}
		}
	}

	utils.RespondJSON(w, statusCode, resp)
}

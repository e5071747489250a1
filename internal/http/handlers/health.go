package handlers

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string `json:"status"`
	Env           string `json:"env"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Health is the unauthenticated liveness endpoint.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Env:           a.Cfg.AppEnv,
		UptimeSeconds: int64(time.Since(a.started) / time.Second),
	})
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"replyhub/internal/domain"
	"replyhub/internal/infra"
)

// App carries the dependencies of the admin/ops HTTP surface.
type App struct {
	Cfg    *infra.Config
	Logger *infra.Logger

	Jobs    domain.JobRepository
	Shops   domain.ShopRepository
	Billing domain.BillingRepository
	Flags   domain.FlagsRepository

	started time.Time
}

func NewApp(cfg *infra.Config, logger *infra.Logger, jobs domain.JobRepository, shops domain.ShopRepository, billing domain.BillingRepository, flags domain.FlagsRepository) *App {
	return &App{
		Cfg:     cfg,
		Logger:  logger,
		Jobs:    jobs,
		Shops:   shops,
		Billing: billing,
		Flags:   flags,
		started: time.Now(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps domain errors onto HTTP status codes and emits a JSON error body.
func (a *App) fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPayload):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, domain.ErrInsufficientCredits):
		code = http.StatusConflict
	}
	if code == http.StatusInternalServerError {
		a.Logger.Error().Err(err).Msg("request failed")
	}
	a.json(w, code, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

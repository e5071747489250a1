package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"replyhub/internal/domain"
)

// OpsStatus serves GET /ops/status: queue depth per state plus the global
// kill switch, the first page an operator looks at.
func (a *App) OpsStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts := make(map[string]int, 5)
	for _, s := range []domain.JobStatus{
		domain.JobStatusQueued,
		domain.JobStatusRunning,
		domain.JobStatusDone,
		domain.JobStatusFailed,
		domain.JobStatusCancelled,
	} {
		n, err := a.Jobs.CountByStatus(ctx, s)
		if err != nil {
			a.fail(w, err)
			return
		}
		counts[string(s)] = n
	}
	killSwitch, err := a.Flags.IsKillSwitchOn(ctx)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"jobs":        counts,
		"kill_switch": killSwitch,
	})
}

// SetKillSwitch serves POST /ops/kill-switch. Without a shop_id it flips the
// global switch; with one it updates the shop's flags, where kind selects
// all, generation, or publish.
func (a *App) SetKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShopID  string `json:"shop_id"`
		Kind    string `json:"kind"`
		Enabled bool   `json:"enabled"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err))
		return
	}

	if req.ShopID == "" {
		if err := a.Flags.SetKillSwitch(r.Context(), req.Enabled); err != nil {
			a.fail(w, err)
			return
		}
		a.json(w, http.StatusOK, map[string]any{"scope": "global", "enabled": req.Enabled})
		return
	}

	st, err := a.Shops.GetSettings(r.Context(), req.ShopID)
	if err != nil {
		a.fail(w, err)
		return
	}
	flags := st.Ops
	switch req.Kind {
	case "", "all":
		flags.KillSwitch = req.Enabled
	case "generation":
		flags.GenerationDisabled = req.Enabled
	case "publish":
		flags.PublishingDisabled = req.Enabled
	default:
		a.fail(w, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidPayload, req.Kind))
		return
	}
	if err := a.Shops.SetOpsFlags(r.Context(), req.ShopID, flags); err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"scope": "shop", "shop_id": req.ShopID, "flags": flags})
}

// ShopBilling serves GET /shops/{id}/billing: live balance plus the newest
// ledger entries.
func (a *App) ShopBilling(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "id")
	balance, err := a.Billing.GetBalance(r.Context(), shopID)
	if err != nil {
		a.fail(w, err)
		return
	}
	entries, err := a.Billing.ListEntries(r.Context(), shopID, queryInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"balance": balance, "entries": entries})
}

// TopUpCredits serves POST /shops/{id}/credits.
func (a *App) TopUpCredits(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "id")
	var req struct {
		Amount int    `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err))
		return
	}
	if req.Amount <= 0 {
		a.fail(w, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidPayload))
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual_topup"
	}
	balance, err := a.Billing.ApplyCredits(r.Context(), shopID, req.Amount, reason, map[string]any{"source": "admin_api"})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int{"balance": balance})
}

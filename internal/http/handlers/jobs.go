package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"replyhub/internal/domain"
)

type jobView struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAt       time.Time       `json:"run_at"`
	Payload     json.RawMessage `json:"payload"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toJobView(j *domain.Job) jobView {
	return jobView{
		ID:          j.ID,
		Type:        string(j.Type),
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		RunAt:       j.RunAt,
		Payload:     json.RawMessage(j.Payload),
		LastError:   j.LastError,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ListJobs serves GET /jobs with optional status, type, shop_id, limit and
// offset query filters. Newest first.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.JobFilter{
		Status: domain.JobStatus(q.Get("status")),
		Type:   domain.JobType(q.Get("type")),
		ShopID: q.Get("shop_id"),
		Limit:  queryInt(q.Get("limit"), 50),
		Offset: queryInt(q.Get("offset"), 0),
	}
	jobs, err := a.Jobs.List(r.Context(), filter)
	if err != nil {
		a.fail(w, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, toJobView(j))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": views})
}

// GetJob serves GET /jobs/{id}.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toJobView(job))
}

// EnqueueSync serves POST /ops/sync/run: a manual, immediate sync kick for
// one shop. stream selects which pipeline; defaults to reviews.
func (a *App) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShopID string `json:"shop_id"`
		Stream string `json:"stream"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err))
		return
	}

	var payload domain.JobPayload
	switch req.Stream {
	case "", "reviews":
		payload = domain.SyncReviewsPayload{ShopID: req.ShopID, Take: a.Cfg.AutoSyncTake, Order: "dateAsc", MaxTotal: a.Cfg.AutoSyncMaxTotal}
	case "questions":
		payload = domain.SyncQuestionsPayload{ShopID: req.ShopID, Take: a.Cfg.AutoSyncTake}
	case "chats":
		payload = domain.SyncChatsPayload{ShopID: req.ShopID}
	case "chat_events":
		payload = domain.SyncChatEventsPayload{ShopID: req.ShopID}
	case "cards":
		payload = domain.SyncProductCardsPayload{ShopID: req.ShopID, Pages: a.Cfg.CardsPagesPerRun, Limit: a.Cfg.CardsPageLimit}
	default:
		a.fail(w, fmt.Errorf("%w: unknown stream %q", domain.ErrInvalidPayload, req.Stream))
		return
	}

	job, err := a.Jobs.Enqueue(r.Context(), domain.EnqueueParams{Payload: payload})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, toJobView(job))
}

// RetryFailed serves POST /ops/jobs/retry-failed: bulk requeue of failed
// jobs, optionally scoped to one shop.
func (a *App) RetryFailed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShopID string `json:"shop_id"`
		Limit  int    `json:"limit"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 100
	}
	n, err := a.Jobs.RetryFailed(r.Context(), req.ShopID, req.Limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int{"retried": n})
}

// CancelJobs serves POST /ops/jobs/cancel.
func (a *App) CancelJobs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err))
		return
	}
	if len(req.IDs) == 0 {
		a.fail(w, fmt.Errorf("%w: ids is required", domain.ErrInvalidPayload))
		return
	}
	n, err := a.Jobs.Cancel(r.Context(), req.IDs)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int{"cancelled": n})
}

// ExportFailedJobs serves GET /ops/jobs/failed/export as an xlsx download,
// for handing a failure backlog to support without database access.
func (a *App) ExportFailedJobs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r.URL.Query().Get("limit"), 500)
	jobs, err := a.Jobs.ListFailed(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	headers := []string{"ID", "Type", "Shop", "Attempts", "Run At", "Last Error", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for row, j := range jobs {
		values := []any{
			j.ID,
			string(j.Type),
			domain.PayloadShopID(j.Payload),
			j.Attempts,
			j.RunAt.Format(time.RFC3339),
			j.LastError,
			j.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=failed-jobs-%s.xlsx", time.Now().Format("20060102-150405")))
	if err := f.Write(w); err != nil {
		a.Logger.Error().Err(err).Msg("write xlsx export")
	}
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/repository"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/tasks"
)

// NotificationHandler serves dispatch triggers, history and the outage
// report export. Everything here is operator-facing and token-gated.
type NotificationHandler struct {
	orch       *tasks.Orchestrator
	jobs       repository.NotificationRepository
	queues     repository.QueueRepository
	cleaner    *tasks.HistoryCleaner
	adminToken string
	logger     *zap.Logger
}

func NewNotificationHandler(
	orch *tasks.Orchestrator,
	jobs repository.NotificationRepository,
	queues repository.QueueRepository,
	cleaner *tasks.HistoryCleaner,
	adminToken string,
	logger *zap.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		orch:       orch,
		jobs:       jobs,
		queues:     queues,
		cleaner:    cleaner,
		adminToken: adminToken,
		logger:     logger,
	}
}

func (h *NotificationHandler) authorized(r *http.Request) bool {
	return r.Header.Get("X-Admin-Token") == h.adminToken
}

type sendRequest struct {
	QueueID    *int     `json:"queue_id"` // nil = all queues
	Message    string   `json:"message"`
	TierFilter []string `json:"tier_filter,omitempty"`
	UserIDs    []int64  `json:"user_ids,omitempty"` // overrides queue_id
}

// Send queues an operator broadcast.
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	var in sendRequest
	if err := readBodyJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	jobID, err := h.orch.EnqueueBroadcast(r.Context(), in.QueueID, in.Message, in.TierFilter, in.UserIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": "queued",
	})
}

func (h *NotificationHandler) History(w http.ResponseWriter, r *http.Request) {
	queueID := parseInt(r.URL.Query().Get("queue_id"), 0)
	limit := parseInt(r.URL.Query().Get("limit"), 50)

	jobs, err := h.jobs.History(r.Context(), queueID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, map[string]any{
			"id":            job.ID,
			"queue_id":      job.QueueID,
			"kind":          job.Kind,
			"status":        job.Status,
			"success_count": job.SuccessCount,
			"fail_count":    job.FailCount,
			"created_at":    job.CreatedAt,
			"sent_at":       job.SentAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	days := parseInt(r.URL.Query().Get("days"), 7)
	since := time.Now().AddDate(0, 0, -days)

	stats, err := h.jobs.Stats(r.Context(), since)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period_days":   days,
		"total_jobs":    stats.TotalJobs,
		"total_success": stats.TotalSuccess,
		"total_failed":  stats.TotalFailed,
		"by_kind":       stats.ByKind,
	})
}

// SendTest pushes the canned test message to one user, synchronously.
func (h *NotificationHandler) SendTest(w http.ResponseWriter, r *http.Request, idRaw string) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}
	userID, err := parseInt64(idRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	result, err := h.orch.SendTest(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Cleanup triggers a retention pass outside the daily schedule.
func (h *NotificationHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	deleted, err := h.cleaner.CleanupOnce(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// OutageReport streams the per-queue outage statistics workbook.
func (h *NotificationHandler) OutageReport(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	queues, err := h.queues.ListQueues(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	data, err := GenerateOutageReport(queues)
	if err != nil {
		h.logger.Error("outage report generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "report generation failed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="outages.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

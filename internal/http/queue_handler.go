package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/service"
)

// QueueHandler serves queue state reads and the admin override.
type QueueHandler struct {
	queues     *service.QueueService
	adminToken string
	logger     *zap.Logger
}

func NewQueueHandler(queues *service.QueueService, adminToken string, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{queues: queues, adminToken: adminToken, logger: logger}
}

func (h *QueueHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := h.queues.ListQueues(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(queues))
	for _, q := range queues {
		out = append(out, q.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request, idRaw string) {
	id := parseInt(idRaw, 0)
	queue, err := h.queues.GetQueue(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queue.ToJSON())
}

// GetStatus is the slim fast-path read used by the bot.
func (h *QueueHandler) GetStatus(w http.ResponseWriter, r *http.Request, idRaw string) {
	id := parseInt(idRaw, 0)
	queue, err := h.queues.GetQueue(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"queue_id":       queue.QueueID,
		"is_power_on":    queue.IsPowerOn,
		"last_change_at": queue.LastChangeAt,
		"source":         queue.LastChangeSource,
	})
}

type statusUpdateRequest struct {
	IsPowerOn *bool  `json:"is_power_on"`
	Source    string `json:"source"`
}

// UpdateStatus applies a manual override; bypasses the quorum, still
// triggers a notification job.
func (h *QueueHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, idRaw string) {
	if r.Header.Get("X-Admin-Token") != h.adminToken {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	var in statusUpdateRequest
	if err := readBodyJSON(r, &in); err != nil || in.IsPowerOn == nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	source := in.Source
	if source == "" {
		source = domain.SourceManual
	}

	result, err := h.queues.SetStatus(r.Context(), parseInt(idRaw, 0), *in.IsPowerOn, source)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *QueueHandler) UsersCount(w http.ResponseWriter, r *http.Request, idRaw string) {
	id := parseInt(idRaw, 0)
	total, byTier, err := h.queues.UsersCount(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"queue_id":    id,
		"total_users": total,
		"by_tier":     byTier,
	})
}

// AllStatuses returns every queue's state in one shot, for dashboards.
func (h *QueueHandler) AllStatuses(w http.ResponseWriter, r *http.Request) {
	queues, err := h.queues.ListQueues(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	statuses := make([]map[string]any, 0, len(queues))
	powerOn := 0
	for _, q := range queues {
		statuses = append(statuses, map[string]any{
			"queue_id":    q.QueueID,
			"is_power_on": q.IsPowerOn,
			"last_change": q.LastChangeAt,
		})
		if q.IsPowerOn {
			powerOn++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_queues":    len(queues),
		"power_on_count":  powerOn,
		"power_off_count": len(queues) - powerOn,
		"queues":          statuses,
	})
}

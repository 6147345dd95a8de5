package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/service"
)

// CrowdReportHandler serves crowd report submission and aggregation.
type CrowdReportHandler struct {
	reports *service.CrowdReportService
	logger  *zap.Logger
}

func NewCrowdReportHandler(reports *service.CrowdReportService, logger *zap.Logger) *CrowdReportHandler {
	return &CrowdReportHandler{reports: reports, logger: logger}
}

type createReportRequest struct {
	UserID     int64    `json:"user_id"`
	AddressID  int64    `json:"address_id"`
	QueueID    int      `json:"queue_id"`
	ReportType string   `json:"report_type"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

func (h *CrowdReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var in createReportRequest
	if err := readBodyJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	created, err := h.reports.SubmitReport(r.Context(), &domain.CrowdReport{
		UserID:     in.UserID,
		AddressID:  in.AddressID,
		QueueID:    in.QueueID,
		ReportType: in.ReportType,
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reportJSON(created))
}

func (h *CrowdReportHandler) Stats(w http.ResponseWriter, r *http.Request) {
	queueID := parseInt(r.URL.Query().Get("queue_id"), 0)
	minutes := parseInt(r.URL.Query().Get("minutes"), 30)

	stats, err := h.reports.GetStats(r.Context(), queueID, minutes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *CrowdReportHandler) Recent(w http.ResponseWriter, r *http.Request) {
	queueID := parseInt(r.URL.Query().Get("queue_id"), 0)
	limit := parseInt(r.URL.Query().Get("limit"), 10)

	reports, err := h.reports.RecentReports(r.Context(), queueID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reportsJSON(reports))
}

func (h *CrowdReportHandler) UserReports(w http.ResponseWriter, r *http.Request, idRaw string) {
	userID, err := parseInt64(idRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 20)

	reports, err := h.reports.UserReports(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reportsJSON(reports))
}

func reportJSON(c *domain.CrowdReport) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"user_id":     c.UserID,
		"address_id":  c.AddressID,
		"queue_id":    c.QueueID,
		"report_type": c.ReportType,
		"status":      c.Status,
		"reported_at": c.ReportedAt,
	}
}

func reportsJSON(reports []*domain.CrowdReport) []map[string]any {
	out := make([]map[string]any, 0, len(reports))
	for _, c := range reports {
		out = append(out, reportJSON(c))
	}
	return out
}

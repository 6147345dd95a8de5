package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Ruslan-Vlasiuk/svitlobot/internal/domain"
	"github.com/Ruslan-Vlasiuk/svitlobot/internal/service"
)

// iotKeyHeader carries the shared secret ESP32 devices authenticate with.
const iotKeyHeader = "X-IoT-Key"

// IoTHandler serves the sensor ingress and fleet admin endpoints.
type IoTHandler struct {
	ingest     *service.IngestService
	adminToken string
	logger     *zap.Logger
}

func NewIoTHandler(ingest *service.IngestService, adminToken string, logger *zap.Logger) *IoTHandler {
	return &IoTHandler{ingest: ingest, adminToken: adminToken, logger: logger}
}

// ReceiveData ingests one telemetry sample. Devices call this every
// 10-30 seconds.
func (h *IoTHandler) ReceiveData(w http.ResponseWriter, r *http.Request) {
	var in service.ReadingInput
	if err := readBodyJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	if in.SensorID == "" {
		writeError(w, http.StatusBadRequest, "sensor_id is required")
		return
	}

	result, err := h.ingest.ReportReading(r.Context(), r.Header.Get(iotKeyHeader), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "received",
		"sensor_id":      result.SensorID,
		"queue_id":       result.QueueID,
		"power_status":   result.PowerStatus,
		"status_changed": result.StatusChanged,
	})
}

type registerSensorRequest struct {
	SensorID        string  `json:"sensor_id"`
	QueueID         int     `json:"queue_id"`
	Priority        int     `json:"priority"`
	FirmwareVersion *string `json:"firmware_version,omitempty"`
	IPAddress       *string `json:"ip_address,omitempty"`
	SIMCard         *string `json:"sim_card,omitempty"`
}

// RegisterSensor provisions a sensor; used during ESP32 setup.
func (h *IoTHandler) RegisterSensor(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	var in registerSensorRequest
	if err := readBodyJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	sensor, err := h.ingest.RegisterSensor(r.Context(), &domain.Sensor{
		SensorID:        in.SensorID,
		QueueID:         in.QueueID,
		Priority:        in.Priority,
		FirmwareVersion: in.FirmwareVersion,
		IPAddress:       in.IPAddress,
		SIMCard:         in.SIMCard,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sensor.ToJSON())
}

func (h *IoTHandler) ListSensors(w http.ResponseWriter, r *http.Request) {
	queueID := parseInt(r.URL.Query().Get("queue_id"), 0)
	sensors, err := h.ingest.ListSensors(r.Context(), queueID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, s.ToJSON())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *IoTHandler) SensorDetails(w http.ResponseWriter, r *http.Request, sensorID string) {
	sensor, readings, err := h.ingest.SensorDetails(r.Context(), sensorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	recent := make([]map[string]any, 0, len(readings))
	for _, d := range readings {
		recent = append(recent, map[string]any{
			"is_power_on": d.IsPowerOn,
			"voltage":     d.Voltage,
			"frequency":   d.Frequency,
			"received_at": d.ReceivedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sensor":      sensor.ToJSON(),
		"recent_data": recent,
	})
}

func (h *IoTHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health, err := h.ingest.CheckFleetHealth(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (h *IoTHandler) authorized(r *http.Request) bool {
	return r.Header.Get("X-Admin-Token") == h.adminToken
}

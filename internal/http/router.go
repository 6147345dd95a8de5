package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router wraps the standard library http.ServeMux; the API surface is
// small enough that a third-party router buys nothing.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{mux: http.NewServeMux(), logger: logger}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterIoTRoutes wires the sensor ingress and fleet admin endpoints.
func (r *Router) RegisterIoTRoutes(h *IoTHandler) {
	r.Handle("/api/iot/data", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ReceiveData(w, req)
	})

	r.Handle("/api/iot/sensors", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.ListSensors(w, req)
		case http.MethodPost:
			h.RegisterSensor(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/api/iot/sensors/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(req.URL.Path, "/api/iot/sensors/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.SensorDetails(w, req, id)
	})

	r.Handle("/api/iot/health-check", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.HealthCheck(w, req)
	})
}

// RegisterQueueRoutes wires queue state reads and the admin override.
func (r *Router) RegisterQueueRoutes(h *QueueHandler) {
	r.Handle("/api/queues", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListQueues(w, req)
	})

	r.Handle("/api/queues/status/all", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.AllStatuses(w, req)
	})

	// /api/queues/{id}, /api/queues/{id}/status, /api/queues/{id}/users-count
	r.Handle("/api/queues/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/api/queues/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && req.Method == http.MethodGet:
			h.GetQueue(w, req, parts[0])
		case len(parts) == 2 && parts[1] == "status" && req.Method == http.MethodGet:
			h.GetStatus(w, req, parts[0])
		case len(parts) == 2 && parts[1] == "status" && req.Method == http.MethodPatch:
			h.UpdateStatus(w, req, parts[0])
		case len(parts) == 2 && parts[1] == "users-count" && req.Method == http.MethodGet:
			h.UsersCount(w, req, parts[0])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

// RegisterCrowdReportRoutes wires crowd report submission and stats.
func (r *Router) RegisterCrowdReportRoutes(h *CrowdReportHandler) {
	r.Handle("/api/crowdreports", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.CreateReport(w, req)
	})

	r.Handle("/api/crowdreports/stats", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Stats(w, req)
	})

	r.Handle("/api/crowdreports/recent", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Recent(w, req)
	})

	r.Handle("/api/crowdreports/user/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(req.URL.Path, "/api/crowdreports/user/")
		h.UserReports(w, req, id)
	})
}

// RegisterNotificationRoutes wires dispatch triggers and history.
func (r *Router) RegisterNotificationRoutes(h *NotificationHandler) {
	r.Handle("/api/notifications/send", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Send(w, req)
	})

	r.Handle("/api/notifications/history", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.History(w, req)
	})

	r.Handle("/api/notifications/stats", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Stats(w, req)
	})

	r.Handle("/api/notifications/test/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(req.URL.Path, "/api/notifications/test/")
		h.SendTest(w, req, id)
	})

	r.Handle("/api/notifications/cleanup", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Cleanup(w, req)
	})

	r.Handle("/api/reports/outages.xlsx", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.OutageReport(w, req)
	})
}

// RegisterHealthRoute wires the liveness probe.
func (r *Router) RegisterHealthRoute() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
}

/*
handlers.go - HTTP API handlers for the backorder board

PURPOSE:
  Exposes pending orders, completion actions and completion reports as a
  JSON API. Handlers parse the request, delegate to the dashboard
  controller or the completion service, and serialize the result.

ENDPOINTS:
  Pending orders:
    GET    /api/pending-orders          Grouped pending orders
    GET    /api/stats                   Per-product client counts
    GET    /api/refresh                 Force a refetch from the source

  Completions:
    POST   /api/complete-order          Mark a client/product pair done
    POST   /api/delete-order            Undo a completion

  Reports:
    GET    /api/completed?date=         Day report grouped by employee
    GET    /api/reports/dates           Days with completion records
    GET    /api/reports/export?date=    Raw records of one day

  Tracking / connection:
    GET    /api/tracking/status         Tracking index diagnostics
    POST   /api/tracking/rebuild        Rebuild index from day-logs
    GET    /api/connection/status       Last observed source state
    GET    /api/connection/test         Ping the source now
    POST   /api/connection/toggle-offline

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Day-log or record not found
  - 500: Persistence and internal errors

SECURITY NOTE:
  No authentication or authorization. The board runs on a trusted LAN.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/backorder-board/completion"
	"github.com/warp/backorder-board/dashboard"
	"github.com/warp/backorder-board/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Board      *dashboard.Controller
	Completion *completion.Service
	Tracker    *completion.Tracker
}

// NewHandler creates a new handler.
func NewHandler(board *dashboard.Controller, svc *completion.Service, tracker *completion.Tracker) *Handler {
	return &Handler{Board: board, Completion: svc, Tracker: tracker}
}

// =============================================================================
// PENDING ORDERS
// =============================================================================

// PendingOrders returns the grouped pending orders.
func (h *Handler) PendingOrders(w http.ResponseWriter, r *http.Request) {
	v := h.Board.PendingOrders(r.Context())
	writeJSON(w, http.StatusOK, PendingOrdersResponse{
		Orders:           v.Groups,
		IsCache:          v.IsCache,
		LastUpdate:       formatUpdate(v.LastUpdate),
		ConnectionStatus: v.Connection.Status,
	})
}

// Stats returns the per-product statistics of the current view.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	v := h.Board.PendingOrders(r.Context())
	writeJSON(w, http.StatusOK, StatsResponse{
		Stats:            v.Stats,
		IsCache:          v.IsCache,
		LastUpdate:       formatUpdate(v.LastUpdate),
		ConnectionStatus: v.Connection.Status,
	})
}

// Refresh forces a refetch and reports the outcome.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	v := h.Board.Refresh(r.Context())
	writeJSON(w, http.StatusOK, RefreshResponse{
		Success:          true,
		IsCache:          v.IsCache,
		LastUpdate:       formatUpdate(v.LastUpdate),
		ConnectionStatus: v.Connection.Status,
		ErrorMessage:     v.Connection.ErrorMessage,
	})
}

// =============================================================================
// COMPLETIONS
// =============================================================================

// CompleteOrder records a completion.
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	var input map[string]any
	if err := decodeBody(w, r, &input); err != nil || input == nil {
		writeError(w, http.StatusBadRequest, "empty or invalid request body", err)
		return
	}

	if _, ok := input["client_ip"]; !ok {
		input["client_ip"] = r.RemoteAddr
	}
	if _, ok := input["user_agent"]; !ok {
		input["user_agent"] = r.UserAgent()
	}

	rec, err := h.Completion.Complete(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	msg := "order marked as completed"
	if h.Board.Offline() {
		msg += " (offline mode)"
	}
	writeJSON(w, http.StatusOK, CompleteOrderResponse{Success: true, Message: msg, Record: rec})
}

// DeleteOrder undoes a completion.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeBody(w, r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	req := DeleteOrderRequest{}
	req.OrderID, _ = completion.Coerce(raw["order_id"])
	req.ReportDate, _ = completion.Coerce(raw["report_date"])

	rec, err := h.Completion.Delete(r.Context(), req.OrderID, req.ReportDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteOrderResponse{Success: true, Message: "completion deleted", Record: rec})
}

// =============================================================================
// REPORTS
// =============================================================================

// CompletedReport returns one day's records grouped by employee.
func (h *Handler) CompletedReport(w http.ResponseWriter, r *http.Request) {
	day, recs, err := h.Completion.Day(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CompletedReportResponse{
		Date:          day.String(),
		FormattedDate: day.Display(),
		TotalCount:    len(recs),
		Employees:     nonNil(completion.GroupByEmployee(recs)),
		Orders:        recs,
	})
}

// ReportDates lists the days that have records.
func (h *Handler) ReportDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.Completion.AvailableDates(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DatesResponse{Success: true, Dates: dates})
}

// ExportReport returns one day's raw records.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	day, recs, err := h.Completion.Day(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{
		Success:       true,
		Date:          day.String(),
		FormattedDate: day.Display(),
		Orders:        recs,
	})
}

// =============================================================================
// TRACKING / CONNECTION
// =============================================================================

// TrackingStatus reports index diagnostics.
func (h *Handler) TrackingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TrackingStatusResponse{Success: true, TrackingStatus: h.Tracker.Status()})
}

// RebuildTracking recomputes the index from the day-logs.
func (h *Handler) RebuildTracking(w http.ResponseWriter, r *http.Request) {
	if err := h.Tracker.Rebuild(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "tracking rebuild failed", err)
		return
	}
	h.Board.Invalidate()
	writeJSON(w, http.StatusOK, RebuildResponse{
		Success:       true,
		TrackingCount: h.Tracker.Len(),
		Message:       "tracking index rebuilt",
	})
}

// ConnectionStatus returns the last observed source state.
func (h *Handler) ConnectionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ConnectionResponse{Success: true, ConnectionStatus: h.Board.Status()})
}

// TestConnection pings the source now.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	st := h.Board.TestConnection(r.Context())
	writeJSON(w, http.StatusOK, ConnectionResponse{
		Success:          st.Status == dashboard.StatusConnected,
		ConnectionStatus: st,
	})
}

// ToggleOffline flips offline mode.
func (h *Handler) ToggleOffline(w http.ResponseWriter, r *http.Request) {
	offline := !h.Board.Offline()
	h.Board.SetOffline(offline)
	msg := "offline mode disabled"
	if offline {
		msg = "offline mode enabled"
	}
	writeJSON(w, http.StatusOK, ToggleOfflineResponse{Success: true, OfflineMode: offline, Message: msg})
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *completion.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Fields: verr.Fields})
	case completion.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case completion.IsClientError(err):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	default:
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

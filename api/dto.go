/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types that
  already carry their wire shape (PendingOrderGroup, Record, Stats) are
  embedded directly; everything else is wrapped here.

NAMING CONVENTION:
  - *Request:  Request body types from clients
  - *Response: Response wrappers

TYPES:
  Pending orders:
    PendingOrdersResponse, StatsResponse, RefreshResponse

  Completions:
    CompleteOrderResponse, DeleteOrderRequest, DeleteOrderResponse

  Reports:
    CompletedReportResponse, DatesResponse, ExportResponse

  Tracking / connection:
    TrackingStatusResponse, RebuildResponse, ConnectionResponse,
    ToggleOfflineResponse

VALIDATION:
  Validation is done in the completion service, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/backorder-board/completion"
	"github.com/warp/backorder-board/dashboard"
	"github.com/warp/backorder-board/orders"
)

// =============================================================================
// PENDING ORDERS
// =============================================================================

// PendingOrdersResponse is the body of GET /api/pending-orders.
type PendingOrdersResponse struct {
	Orders           []orders.PendingOrderGroup `json:"orders"`
	IsCache          bool                       `json:"is_cache"`
	LastUpdate       *string                    `json:"last_update"`
	ConnectionStatus string                     `json:"connection_status"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Stats            orders.Stats `json:"stats"`
	IsCache          bool         `json:"is_cache"`
	LastUpdate       *string      `json:"last_update"`
	ConnectionStatus string       `json:"connection_status"`
}

// RefreshResponse is the body of GET /api/refresh.
type RefreshResponse struct {
	Success          bool    `json:"success"`
	IsCache          bool    `json:"is_cache"`
	LastUpdate       *string `json:"last_update"`
	ConnectionStatus string  `json:"connection_status"`
	ErrorMessage     string  `json:"error_message,omitempty"`
}

// =============================================================================
// COMPLETIONS
// =============================================================================

// CompleteOrderResponse is the body of a successful POST /api/complete-order.
type CompleteOrderResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Record  completion.Record `json:"record"`
}

// DeleteOrderRequest is the body of POST /api/delete-order.
type DeleteOrderRequest struct {
	OrderID    string `json:"order_id"`
	ReportDate string `json:"report_date"`
}

// DeleteOrderResponse is the body of a successful delete.
type DeleteOrderResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Record  completion.Record `json:"record"`
}

// =============================================================================
// REPORTS
// =============================================================================

// CompletedReportResponse is the per-day report grouped by employee.
type CompletedReportResponse struct {
	Date          string                     `json:"date"`
	FormattedDate string                     `json:"formatted_date"`
	TotalCount    int                        `json:"total_count"`
	Employees     []completion.EmployeeGroup `json:"employees"`
	Orders        []completion.Record        `json:"orders"`
}

// DatesResponse lists days that have completion records.
type DatesResponse struct {
	Success bool                   `json:"success"`
	Dates   []completion.DateEntry `json:"dates"`
}

// ExportResponse is the raw record export for one day.
type ExportResponse struct {
	Success       bool                `json:"success"`
	Date          string              `json:"date"`
	FormattedDate string              `json:"formatted_date"`
	Orders        []completion.Record `json:"orders"`
}

// =============================================================================
// TRACKING / CONNECTION
// =============================================================================

// TrackingStatusResponse reports the tracking index diagnostics.
type TrackingStatusResponse struct {
	Success bool `json:"success"`
	completion.TrackingStatus
}

// RebuildResponse is the body of POST /api/tracking/rebuild.
type RebuildResponse struct {
	Success       bool   `json:"success"`
	TrackingCount int    `json:"tracking_count"`
	Message       string `json:"message"`
}

// ConnectionResponse reports the data source state.
type ConnectionResponse struct {
	Success bool `json:"success"`
	dashboard.ConnectionStatus
}

// ToggleOfflineResponse is the body of POST /api/connection/toggle-offline.
type ToggleOfflineResponse struct {
	Success     bool   `json:"success"`
	OfflineMode bool   `json:"offline_mode"`
	Message     string `json:"message"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

// formatUpdate renders a cache timestamp the way the board displays it.
func formatUpdate(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(orders.TimestampLayout)
	return &s
}

// Package orders turns raw pending-order rows into product-grouped views.
package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the source format of occurrence timestamps.
const TimestampLayout = "02/01/2006, 15:04:05"

// =============================================================================
// INPUT
// =============================================================================

// RawRow is one client/product occurrence as returned by a data source.
type RawRow struct {
	OccurrenceTimestamp string
	HandlerName         string
	ClientName          string
	ProductName         string
	OrderStatus         string
	OccurrenceType      string
	OccurrenceText      string
	ProductCode         string
}

// Source supplies raw pending-order rows.
type Source interface {
	FetchPendingRows(ctx context.Context) ([]RawRow, error)
}

// CompletionChecker reports whether a client/product pair is already done.
type CompletionChecker interface {
	IsCompleted(client, product string) bool
}

// CheckerFunc adapts a function to CompletionChecker.
type CheckerFunc func(client, product string) bool

func (f CheckerFunc) IsCompleted(client, product string) bool { return f(client, product) }

// =============================================================================
// OUTPUT
// =============================================================================

// ClientDetail describes the occurrence that put a client in a group.
type ClientDetail struct {
	ClientName          string `json:"client_name"`
	OccurrenceTimestamp string `json:"occurrence_timestamp"`
	HandlerName         string `json:"handler_name"`
	OccurrenceText      string `json:"occurrence_text"`
}

// PendingOrderGroup is one product with every client still waiting for it.
// Clients and ClientDetails correspond index for index.
type PendingOrderGroup struct {
	ProductLabel              string         `json:"product_label"`
	ProductCode               string         `json:"product_code"`
	Clients                   []string       `json:"clients"`
	ClientDetails             []ClientDetail `json:"client_details"`
	OccurrenceType            string         `json:"occurrence_type"`
	Status                    string         `json:"status"`
	LatestOccurrenceTimestamp string         `json:"latest_occurrence_timestamp"`
	Summary                   string         `json:"summary"`
}

// ClientCount returns the number of distinct clients in the group.
func (g PendingOrderGroup) ClientCount() int { return len(g.Clients) }

// Clone returns a deep copy so cached groups are never shared mutably.
func (g PendingOrderGroup) Clone() PendingOrderGroup {
	c := g
	c.Clients = append([]string(nil), g.Clients...)
	c.ClientDetails = append([]ClientDetail(nil), g.ClientDetails...)
	return c
}

// ProductLabel builds the "{name} ({code})" display label.
func ProductLabel(name, code string) string {
	return fmt.Sprintf("%s (%s)", name, code)
}

// Summarize renders "N cliente(s): A, B".
func Summarize(clients []string) string {
	return fmt.Sprintf("%d cliente(s): %s", len(clients), strings.Join(clients, ", "))
}

// Stats is the per-product reporting view, in group-creation order.
type Stats struct {
	ProductLabels []string          `json:"product_labels"`
	ProductCounts []int             `json:"product_counts"`
	TotalClients  int               `json:"total_clients"`
	Shares        []decimal.Decimal `json:"shares"`
}

// Result is the output of one aggregation. Groups is sorted for display,
// Created holds the same groups in creation order.
type Result struct {
	Groups  []PendingOrderGroup
	Stats   Stats
	Created []PendingOrderGroup
}

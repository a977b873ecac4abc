/*
aggregate.go - Raw rows to product-grouped pending orders

PURPOSE:
  Groups raw occurrence rows by product, de-duplicates clients within a
  product, hides client/product pairs already completed, and orders the
  result so the products with the most waiting clients come first.

ALGORITHM:
  1. Drop rows with no client name or no product code (logged).
  2. Drop rows whose pair the CompletionChecker reports completed.
  3. Group by "{product name} ({product code})". The first row seeds the
     group. Later rows add their client if it is new to the group and
     advance the latest occurrence timestamp when theirs is newer.
  4. Drop groups with no clients.
  5. Stable sort by client count, descending.

  Stats are produced in group-creation order (before the sort).

EXAMPLE:
  rows:   (A, X/1) (B, X/1) (A, X/1)
  groups: X (1) -> clients [A, B]
  after marking A/1 completed:
  groups: X (1) -> clients [B]

SEE ALSO:
  - completion/tracker.go: the production CompletionChecker
  - dashboard/controller.go: caches the result
*/
package orders

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Aggregator builds pending-order groups. A nil Completed hides nothing.
type Aggregator struct {
	Completed CompletionChecker
	Log       *zap.Logger
}

// Aggregate runs the full algorithm over rows.
func (a Aggregator) Aggregate(rows []RawRow) Result {
	log := a.Log
	if log == nil {
		log = zap.NewNop()
	}

	var created []*PendingOrderGroup
	byLabel := make(map[string]*PendingOrderGroup)
	seen := make(map[string]map[string]struct{})
	dropped := 0

	for i, row := range rows {
		if strings.TrimSpace(row.ClientName) == "" || strings.TrimSpace(row.ProductCode) == "" {
			log.Warn("dropping row without client or product code",
				zap.Int("row", i),
				zap.String("client", row.ClientName),
				zap.String("product_code", row.ProductCode))
			dropped++
			continue
		}
		if a.Completed != nil && a.Completed.IsCompleted(row.ClientName, row.ProductCode) {
			continue
		}

		label := ProductLabel(row.ProductName, row.ProductCode)
		g, ok := byLabel[label]
		if !ok {
			g = &PendingOrderGroup{
				ProductLabel:              label,
				ProductCode:               row.ProductCode,
				OccurrenceType:            row.OccurrenceType,
				Status:                    row.OrderStatus,
				LatestOccurrenceTimestamp: row.OccurrenceTimestamp,
			}
			byLabel[label] = g
			seen[label] = make(map[string]struct{})
			created = append(created, g)
		}

		if _, dup := seen[label][row.ClientName]; !dup {
			seen[label][row.ClientName] = struct{}{}
			g.Clients = append(g.Clients, row.ClientName)
			g.ClientDetails = append(g.ClientDetails, ClientDetail{
				ClientName:          row.ClientName,
				OccurrenceTimestamp: row.OccurrenceTimestamp,
				HandlerName:         row.HandlerName,
				OccurrenceText:      row.OccurrenceText,
			})
		}
		if NewerTimestamp(row.OccurrenceTimestamp, g.LatestOccurrenceTimestamp) {
			g.LatestOccurrenceTimestamp = row.OccurrenceTimestamp
		}
	}

	groups := make([]PendingOrderGroup, 0, len(created))
	for _, g := range created {
		if len(g.Clients) == 0 {
			continue
		}
		g.Summary = Summarize(g.Clients)
		groups = append(groups, *g)
	}

	if dropped > 0 {
		log.Info("aggregation dropped rows", zap.Int("dropped", dropped), zap.Int("rows", len(rows)))
	}
	return sorted(groups)
}

// Filter re-applies completion filtering to groups that were built
// earlier and returns them sorted. It never mutates its input.
func Filter(groups []PendingOrderGroup, checker CompletionChecker) []PendingOrderGroup {
	return Refilter(groups, checker).Groups
}

// Refilter is Filter for groups in creation order. Stats and Created
// keep that order, Groups is sorted.
func Refilter(created []PendingOrderGroup, checker CompletionChecker) Result {
	out := make([]PendingOrderGroup, 0, len(created))
	for _, g := range created {
		c := PendingOrderGroup{
			ProductLabel:              g.ProductLabel,
			ProductCode:               g.ProductCode,
			OccurrenceType:            g.OccurrenceType,
			Status:                    g.Status,
			LatestOccurrenceTimestamp: g.LatestOccurrenceTimestamp,
		}
		for i, client := range g.Clients {
			if checker != nil && checker.IsCompleted(client, g.ProductCode) {
				continue
			}
			c.Clients = append(c.Clients, client)
			if i < len(g.ClientDetails) {
				c.ClientDetails = append(c.ClientDetails, g.ClientDetails[i])
			}
		}
		if len(c.Clients) == 0 {
			continue
		}
		c.Summary = Summarize(c.Clients)
		out = append(out, c)
	}
	return sorted(out)
}

// sorted builds a Result from groups in creation order.
func sorted(created []PendingOrderGroup) Result {
	groups := make([]PendingOrderGroup, len(created))
	copy(groups, created)
	SortByClients(groups)
	return Result{Groups: groups, Stats: StatsOf(created), Created: created}
}

// SortByClients orders groups by client count, descending. Ties keep
// their current order.
func SortByClients(groups []PendingOrderGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Clients) > len(groups[j].Clients)
	})
}

// StatsOf summarizes groups in their given order.
func StatsOf(groups []PendingOrderGroup) Stats {
	s := Stats{
		ProductLabels: make([]string, 0, len(groups)),
		ProductCounts: make([]int, 0, len(groups)),
		Shares:        make([]decimal.Decimal, 0, len(groups)),
	}
	for _, g := range groups {
		s.ProductLabels = append(s.ProductLabels, g.ProductLabel)
		s.ProductCounts = append(s.ProductCounts, len(g.Clients))
		s.TotalClients += len(g.Clients)
	}
	if s.TotalClients == 0 {
		return s
	}
	total := decimal.NewFromInt(int64(s.TotalClients))
	hundred := decimal.NewFromInt(100)
	for _, n := range s.ProductCounts {
		s.Shares = append(s.Shares, decimal.NewFromInt(int64(n)).Mul(hundred).Div(total).Round(2))
	}
	return s
}

// NewerTimestamp reports whether candidate is later than current. Both are
// parsed as TimestampLayout; if either does not parse the strings are
// compared lexically.
func NewerTimestamp(candidate, current string) bool {
	c, cerr := time.ParseInLocation(TimestampLayout, candidate, time.Local)
	p, perr := time.ParseInLocation(TimestampLayout, current, time.Local)
	if cerr != nil || perr != nil {
		return candidate > current
	}
	return c.After(p)
}

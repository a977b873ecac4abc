package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(client, product, code, ts string) RawRow {
	return RawRow{
		OccurrenceTimestamp: ts,
		HandlerName:         "Carlos Silva",
		ClientName:          client,
		ProductName:         product,
		OrderStatus:         "Conferido",
		OccurrenceType:      "Espera por Produto",
		OccurrenceText:      "Aguardando produto " + product,
		ProductCode:         code,
	}
}

// completedSet is a CompletionChecker over exact client/product pairs.
type completedSet map[[2]string]bool

func (s completedSet) IsCompleted(client, product string) bool {
	return s[[2]string{client, product}]
}

func TestAggregate_GroupsByProduct(t *testing.T) {
	// GIVEN: Two clients waiting for the same product
	rows := []RawRow{
		row("A", "X", "1", "14/10/2026, 09:00:00"),
		row("B", "X", "1", "14/10/2026, 10:00:00"),
	}

	// WHEN: They are aggregated
	res := Aggregator{}.Aggregate(rows)

	// THEN: One group holds both clients
	require.Len(t, res.Groups, 1)
	g := res.Groups[0]
	assert.Equal(t, "X (1)", g.ProductLabel)
	assert.Equal(t, []string{"A", "B"}, g.Clients)
	assert.Equal(t, 2, g.ClientCount())
	assert.Equal(t, "2 cliente(s): A, B", g.Summary)
	assert.Equal(t, "14/10/2026, 10:00:00", g.LatestOccurrenceTimestamp)
	assert.Equal(t, "Conferido", g.Status)
	assert.Equal(t, "Espera por Produto", g.OccurrenceType)
	require.Len(t, g.ClientDetails, 2)
	assert.Equal(t, "B", g.ClientDetails[1].ClientName)
}

func TestAggregate_HidesCompletedPairs(t *testing.T) {
	rows := []RawRow{
		row("A", "X", "1", "14/10/2026, 09:00:00"),
		row("B", "X", "1", "14/10/2026, 10:00:00"),
	}
	done := completedSet{{"A", "1"}: true}

	res := Aggregator{Completed: done}.Aggregate(rows)

	require.Len(t, res.Groups, 1)
	assert.Equal(t, []string{"B"}, res.Groups[0].Clients)
	assert.Equal(t, 1, res.Groups[0].ClientCount())
}

func TestAggregate_AllCompletedIsEmpty(t *testing.T) {
	rows := []RawRow{row("A", "X", "1", "14/10/2026, 09:00:00")}
	done := completedSet{{"A", "1"}: true}

	res := Aggregator{Completed: done}.Aggregate(rows)

	assert.NotNil(t, res.Groups)
	assert.Empty(t, res.Groups)
	assert.NotNil(t, res.Stats.ProductLabels)
	assert.Empty(t, res.Stats.ProductLabels)
	assert.NotNil(t, res.Stats.ProductCounts)
	assert.Empty(t, res.Stats.ProductCounts)
	assert.Zero(t, res.Stats.TotalClients)
	assert.Empty(t, res.Stats.Shares)
}

func TestAggregate_DedupesClientsKeepingFirstDetail(t *testing.T) {
	rows := []RawRow{
		row("A", "X", "1", "14/10/2026, 09:00:00"),
		row("A", "X", "1", "14/10/2026, 11:00:00"),
	}

	res := Aggregator{}.Aggregate(rows)

	require.Len(t, res.Groups, 1)
	g := res.Groups[0]
	assert.Equal(t, []string{"A"}, g.Clients)
	require.Len(t, g.ClientDetails, 1)
	assert.Equal(t, "14/10/2026, 09:00:00", g.ClientDetails[0].OccurrenceTimestamp)
	assert.Equal(t, "14/10/2026, 11:00:00", g.LatestOccurrenceTimestamp)
}

func TestAggregate_DropsRowsWithoutClientOrCode(t *testing.T) {
	rows := []RawRow{
		row("", "X", "1", ""),
		row("   ", "X", "1", ""),
		row("A", "X", "", ""),
		row("A", "Y", "0", ""),
	}

	res := Aggregator{}.Aggregate(rows)

	require.Len(t, res.Groups, 1)
	assert.Equal(t, "Y (0)", res.Groups[0].ProductLabel)
}

func TestAggregate_SortsByClientCountStable(t *testing.T) {
	// GIVEN: Products created in order P, Q, R with 1, 3, 1 clients
	rows := []RawRow{
		row("A", "P", "1", ""),
		row("A", "Q", "2", ""),
		row("B", "Q", "2", ""),
		row("C", "Q", "2", ""),
		row("A", "R", "3", ""),
	}

	res := Aggregator{}.Aggregate(rows)

	// THEN: Groups are by count descending, ties in creation order
	var labels []string
	for _, g := range res.Groups {
		labels = append(labels, g.ProductLabel)
	}
	assert.Equal(t, []string{"Q (2)", "P (1)", "R (3)"}, labels)

	// THEN: Stats stay in creation order
	assert.Equal(t, []string{"P (1)", "Q (2)", "R (3)"}, res.Stats.ProductLabels)
	assert.Equal(t, []int{1, 3, 1}, res.Stats.ProductCounts)
	assert.Equal(t, 5, res.Stats.TotalClients)
}

func TestAggregate_SameCodeDifferentNamesAreSeparateGroups(t *testing.T) {
	rows := []RawRow{
		row("A", "Dipirona", "7", ""),
		row("B", "Dipirona Gotas", "7", ""),
	}

	res := Aggregator{}.Aggregate(rows)

	assert.Len(t, res.Groups, 2)
}

func TestStatsOf_Shares(t *testing.T) {
	groups := []PendingOrderGroup{
		{ProductLabel: "P (1)", Clients: []string{"A"}},
		{ProductLabel: "Q (2)", Clients: []string{"A", "B"}},
	}

	s := StatsOf(groups)

	require.Len(t, s.Shares, 2)
	assert.True(t, decimal.RequireFromString("33.33").Equal(s.Shares[0]), s.Shares[0].String())
	assert.True(t, decimal.RequireFromString("66.67").Equal(s.Shares[1]), s.Shares[1].String())
}

func TestNewerTimestamp(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		current   string
		want      bool
	}{
		{"later same month", "14/10/2026, 10:00:00", "14/10/2026, 09:00:00", true},
		{"earlier", "13/10/2026, 23:00:00", "14/10/2026, 09:00:00", false},
		// Lexically "01/11" < "31/10", but November is later.
		{"month rollover parsed", "01/11/2026, 08:00:00", "31/10/2026, 22:00:00", true},
		{"equal", "14/10/2026, 09:00:00", "14/10/2026, 09:00:00", false},
		{"unparseable falls back to lexical", "b", "a", true},
		{"empty current", "14/10/2026, 09:00:00", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewerTimestamp(tt.candidate, tt.current))
		})
	}
}

func TestFilter(t *testing.T) {
	// GIVEN: Groups aggregated before two completions
	res := Aggregator{}.Aggregate([]RawRow{
		row("A", "P", "1", ""),
		row("B", "P", "1", ""),
		row("C", "P", "1", ""),
		row("A", "Q", "2", ""),
		row("B", "Q", "2", ""),
	})
	original := res.Groups[0].Clients
	done := completedSet{{"A", "1"}: true, {"B", "1"}: true}

	// WHEN: They are filtered again
	out := Filter(res.Groups, done)

	// THEN: Completed clients are gone, the order reflects new counts, input untouched
	require.Len(t, out, 2)
	assert.Equal(t, "Q (2)", out[0].ProductLabel)
	assert.Equal(t, []string{"C"}, out[1].Clients)
	require.Len(t, out[1].ClientDetails, 1)
	assert.Equal(t, "C", out[1].ClientDetails[0].ClientName)
	assert.Equal(t, "1 cliente(s): C", out[1].Summary)
	assert.Equal(t, []string{"A", "B", "C"}, original)

	// WHEN: Every client is completed
	all := completedSet{{"A", "1"}: true, {"B", "1"}: true, {"C", "1"}: true, {"A", "2"}: true, {"B", "2"}: true}

	// THEN: No groups survive
	assert.Empty(t, Filter(res.Groups, all))
}

func TestRefilter_StatsKeepCreationOrder(t *testing.T) {
	// GIVEN: P created before Q, with Q ending up larger after a completion
	res := Aggregator{}.Aggregate([]RawRow{
		row("A", "P", "1", ""),
		row("B", "P", "1", ""),
		row("A", "Q", "2", ""),
		row("B", "Q", "2", ""),
	})
	require.Equal(t, []string{"P (1)", "Q (2)"}, res.Stats.ProductLabels)

	// WHEN: The creation-ordered groups are filtered again
	out := Refilter(res.Created, completedSet{{"A", "1"}: true})

	// THEN: Groups are re-sorted but stats and Created follow creation order
	assert.Equal(t, "Q (2)", out.Groups[0].ProductLabel)
	assert.Equal(t, []string{"P (1)", "Q (2)"}, out.Stats.ProductLabels)
	assert.Equal(t, []int{1, 2}, out.Stats.ProductCounts)
	require.Len(t, out.Created, 2)
	assert.Equal(t, "P (1)", out.Created[0].ProductLabel)
}

func TestClone(t *testing.T) {
	g := PendingOrderGroup{Clients: []string{"A"}, ClientDetails: []ClientDetail{{ClientName: "A"}}}

	c := g.Clone()
	c.Clients[0] = "Z"
	c.ClientDetails[0].ClientName = "Z"

	assert.Equal(t, "A", g.Clients[0])
	assert.Equal(t, "A", g.ClientDetails[0].ClientName)
}

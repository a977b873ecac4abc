package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/backorder-board/orders"
)

var mockNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.Local)

func fixedMock(seed uint64) *Mock {
	m := NewMock(seed)
	m.now = func() time.Time { return mockNow }
	return m
}

func TestMock_RowsStayWithinCatalogue(t *testing.T) {
	codes := make(map[string]string)
	for _, p := range mockProducts {
		codes[p.Code] = p.Name
	}

	for seed := uint64(1); seed <= 20; seed++ {
		rows, err := fixedMock(seed).FetchPendingRows(context.Background())
		require.NoError(t, err)
		require.NotEmpty(t, rows)
		assert.LessOrEqual(t, len(rows), 15*5)

		pairs := make(map[string]bool)
		for _, r := range rows {
			pair := r.ClientName + ":" + r.ProductCode
			assert.False(t, pairs[pair], "duplicate pair %s", pair)
			pairs[pair] = true

			assert.Equal(t, codes[r.ProductCode], r.ProductName)
			assert.Contains(t, mockClients, r.ClientName)
			assert.Contains(t, mockHandlers, r.HandlerName)
			assert.Equal(t, mockOrderStatus, r.OrderStatus)
			assert.Equal(t, mockOccurrenceType, r.OccurrenceType)

			ts, err := time.ParseInLocation(orders.TimestampLayout, r.OccurrenceTimestamp, time.Local)
			require.NoError(t, err)
			age := mockNow.Sub(ts)
			assert.GreaterOrEqual(t, age, time.Hour)
			assert.LessOrEqual(t, age, 24*time.Hour)
		}
	}
}

func TestMock_SameSeedSameRows(t *testing.T) {
	a, err := fixedMock(42).FetchPendingRows(context.Background())
	require.NoError(t, err)
	b, err := fixedMock(42).FetchPendingRows(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestMock_GroupsAreAggregated(t *testing.T) {
	groups := fixedMock(7).Groups(context.Background())

	require.NotEmpty(t, groups)
	for i := 1; i < len(groups); i++ {
		assert.GreaterOrEqual(t, groups[i-1].ClientCount(), groups[i].ClientCount())
	}
}

func TestMock_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMock(1).FetchPendingRows(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, NewMock(1).Groups(ctx))
}

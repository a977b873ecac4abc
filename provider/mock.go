package provider

import (
	"context"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/warp/backorder-board/orders"
)

// =============================================================================
// MOCK PROVIDER - Offline demo data
// =============================================================================

type mockProduct struct {
	Name string
	Code string
}

var (
	mockProducts = []mockProduct{
		{"Paracetamol 500mg", "P500"},
		{"Ibuprofeno 600mg", "I600"},
		{"Dipirona 1g", "D1000"},
		{"Amoxicilina 500mg", "A500"},
		{"Loratadina 10mg", "L10"},
		{"Omeprazol 20mg", "O20"},
		{"Vitamina C 1g", "VC1000"},
		{"Complexo B", "CB"},
	}

	mockClients = []string{
		"Farmácia São João",
		"Drogaria Moderna",
		"Farmácia Popular",
		"Drogaria Saúde",
		"Farmácia Central",
		"Drogaria Bem Estar",
		"Farmácia Vida",
		"Drogaria Esperança",
	}

	mockHandlers = []string{
		"Carlos Silva",
		"Maria Oliveira",
		"João Santos",
		"Ana Pereira",
		"Pedro Costa",
	}
)

const (
	mockOrderStatus    = "Conferido"
	mockOccurrenceType = "Espera por Produto"
)

// Mock generates plausible pending rows from fixed pharmacy catalogues.
// Every call produces a fresh random batch.
type Mock struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewMock creates a mock provider. seed 0 picks a random seed.
func NewMock(seed uint64) *Mock {
	return &Mock{faker: gofakeit.New(seed), now: time.Now}
}

// FetchPendingRows draws 5 to 15 product picks, each with 1 to 5 client
// picks. A client/product pair appears at most once.
func (m *Mock) FetchPendingRows(ctx context.Context) ([]orders.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	used := make(map[string]struct{})
	var rows []orders.RawRow

	for range m.faker.Number(5, 15) {
		p := mockProducts[m.faker.Number(0, len(mockProducts)-1)]
		for range m.faker.Number(1, 5) {
			client := m.faker.RandomString(mockClients)
			combo := client + ":" + p.Code
			if _, dup := used[combo]; dup {
				continue
			}
			used[combo] = struct{}{}

			ts := now.Add(-time.Duration(m.faker.Number(1, 24)) * time.Hour)
			rows = append(rows, orders.RawRow{
				OccurrenceTimestamp: ts.Format(orders.TimestampLayout),
				HandlerName:         m.faker.RandomString(mockHandlers),
				ClientName:          client,
				ProductName:         p.Name,
				OrderStatus:         mockOrderStatus,
				OccurrenceType:      mockOccurrenceType,
				OccurrenceText:      "Aguardando produto " + p.Name,
				ProductCode:         p.Code,
			})
		}
	}
	return rows, nil
}

// Result aggregates a freshly generated batch. Callers filter it through
// the completion tracker themselves.
func (m *Mock) Result(ctx context.Context) orders.Result {
	rows, err := m.FetchPendingRows(ctx)
	if err != nil {
		rows = nil
	}
	return orders.Aggregator{}.Aggregate(rows)
}

// Groups returns the sorted groups of a fresh batch.
func (m *Mock) Groups(ctx context.Context) []orders.PendingOrderGroup {
	return m.Result(ctx).Groups
}

package completion

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 14, 9, 30, 15, 0, time.Local)

func validInput() map[string]any {
	return map[string]any{
		"product_code": "P500",
		"product_name": "Paracetamol 500mg",
		"client_name":  "Farmácia São João",
		"completed_by": "Maria Oliveira",
		"handler":      "Carlos Silva",
	}
}

func TestNewRecord_StampsIdentityAndDates(t *testing.T) {
	rec, err := NewRecord(validInput(), testNow)
	require.NoError(t, err)

	assert.Equal(t, "P500", rec.ProductCode)
	assert.Equal(t, "Carlos Silva", rec.Handler)
	assert.Equal(t, "2026-10-14", rec.ProcessingDate)
	assert.Equal(t, testNow.Format(time.RFC3339Nano), rec.Timestamp)
	assert.Regexp(t, regexp.MustCompile(`^20261014093015-Farmá-P500-[0-9a-f]{8}$`), rec.ID)
}

func TestNewRecord_IDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		rec, err := NewRecord(validInput(), testNow)
		require.NoError(t, err)
		require.False(t, seen[rec.ID], "duplicate id %s", rec.ID)
		seen[rec.ID] = true
	}
}

func TestNewRecord_ReportsEveryMissingField(t *testing.T) {
	// GIVEN: A request with only a client name
	// WHEN: It is validated
	// THEN: All three other required fields are reported, in order

	_, err := NewRecord(map[string]any{"client_name": "Drogaria Moderna", "product_name": "  "}, testNow)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"product_code", "product_name", "completed_by"}, verr.Fields)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewRecord_NullRequiredFieldIsMissing(t *testing.T) {
	in := validInput()
	in["completed_by"] = nil

	_, err := NewRecord(in, testNow)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"completed_by"}, verr.Fields)
}

func TestNewRecord_NumericProductCodeZeroIsValid(t *testing.T) {
	in := validInput()
	in["product_code"] = float64(0)

	rec, err := NewRecord(in, testNow)
	require.NoError(t, err)
	assert.Equal(t, "0", rec.ProductCode)
}

func TestNewRecord_HandlerFallbacks(t *testing.T) {
	t.Run("legacy alias", func(t *testing.T) {
		in := validInput()
		delete(in, "handler")
		in["separador"] = "Pedro Costa"

		rec, err := NewRecord(in, testNow)
		require.NoError(t, err)
		assert.Equal(t, "Pedro Costa", rec.Handler)
		assert.NotContains(t, rec.Extra, "separador")
	})

	t.Run("missing", func(t *testing.T) {
		in := validInput()
		delete(in, "handler")

		rec, err := NewRecord(in, testNow)
		require.NoError(t, err)
		assert.Equal(t, NotAvailable, rec.Handler)
	})
}

func TestNewRecord_SanitizesExtraFields(t *testing.T) {
	in := validInput()
	in["client_ip"] = "10.0.0.7"
	in["note"] = nil
	in["qty"] = float64(3)
	in["tags"] = []any{"urgent"}

	rec, err := NewRecord(in, testNow)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.7", rec.Extra["client_ip"])
	assert.Equal(t, NotAvailable, rec.Extra["note"])
	assert.Equal(t, float64(3), rec.Extra["qty"])
	assert.Equal(t, `["urgent"]`, rec.Extra["tags"])
}

func TestRecordJSON_FlattensExtra(t *testing.T) {
	// GIVEN: A record carrying request metadata
	in := validInput()
	in["user_agent"] = "kiosk/1.0"
	rec, err := NewRecord(in, testNow)
	require.NoError(t, err)

	// WHEN: Written as a day-log entry
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	// THEN: Metadata sits beside the record fields, and reads back into Extra
	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "kiosk/1.0", flat["user_agent"])
	assert.Equal(t, rec.ID, flat["id"])

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, rec.ClientName, back.ClientName)
	assert.Equal(t, "kiosk/1.0", back.Extra["user_agent"])
}

func TestRecordJSON_ReadsLegacyHandlerAndNumbers(t *testing.T) {
	data := []byte(`{"id":"x","product_code":500,"product_name":"Omeprazol 20mg",
		"client_name":"Drogaria Saúde","completed_by":"Ana Pereira","separador":"João Santos",
		"timestamp":"2026-10-14T09:00:00-03:00","processing_date":"2026-10-14"}`)

	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))

	assert.Equal(t, "500", rec.ProductCode)
	assert.Equal(t, "João Santos", rec.Handler)
	k, err := rec.Key()
	require.NoError(t, err)
	assert.Equal(t, Key("drogariasaúde:500"), k)
}

func TestGroupByEmployee(t *testing.T) {
	recs := []Record{
		{ID: "1", CompletedBy: "Maria"},
		{ID: "2", CompletedBy: ""},
		{ID: "3", CompletedBy: "Carlos"},
		{ID: "4", CompletedBy: "Maria"},
	}

	groups := GroupByEmployee(recs)

	require.Len(t, groups, 3)
	assert.Equal(t, "Maria", groups[0].Employee)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, UnknownEmployee, groups[1].Employee)
	assert.Equal(t, "Carlos", groups[2].Employee)
	assert.Equal(t, "4", groups[0].Records[1].ID)
}

func TestDay(t *testing.T) {
	d, err := ParseDay("2026-10-14")
	require.NoError(t, err)

	assert.Equal(t, "14/10/2026", d.Display())
	assert.Equal(t, "2026-10-13", d.AddDays(-1).String())
	assert.True(t, d.AddDays(-1).Before(d))
	assert.Len(t, Range(d.AddDays(-30), d), 31)

	_, err = ParseDay("14/10/2026")
	assert.Error(t, err)
}

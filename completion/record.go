package completion

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// NotAvailable replaces missing or null values in persisted records.
const NotAvailable = "N/A"

// Record field names as they appear in request bodies and day-log files.
const (
	FieldID             = "id"
	FieldProductCode    = "product_code"
	FieldProductName    = "product_name"
	FieldClientName     = "client_name"
	FieldCompletedBy    = "completed_by"
	FieldHandler        = "handler"
	FieldTimestamp      = "timestamp"
	FieldProcessingDate = "processing_date"

	// legacyHandlerField is what older day-logs and clients send for the handler.
	legacyHandlerField = "separador"
)

// RequiredFields must be present and non-empty on every completion.
var RequiredFields = []string{FieldProductCode, FieldProductName, FieldClientName, FieldCompletedBy}

// =============================================================================
// RECORD - One completion action, immutable once written
// =============================================================================

// Record is a completed client/product pair as stored in a day-log.
type Record struct {
	ID             string
	ProductCode    string
	ProductName    string
	ClientName     string
	CompletedBy    string
	Handler        string
	Timestamp      string // RFC3339 completion instant
	ProcessingDate string // ISO date; selects the day-log
	Extra          map[string]any
}

// Key returns the canonical key of the record's client/product pair.
func (r Record) Key() (Key, error) {
	return NormalizeKey(r.ClientName, r.ProductCode)
}

// Day returns the day-log bucket of the record.
func (r Record) Day() (Day, error) {
	return ParseDay(r.ProcessingDate)
}

// NewRecord validates a completion request and stamps id, timestamp and
// processing date. Every missing required field is reported at once.
func NewRecord(input map[string]any, now time.Time) (Record, error) {
	values := make(map[string]string, len(RequiredFields))
	var missing []string
	for _, f := range RequiredFields {
		s, ok := Coerce(input[f])
		s = strings.TrimSpace(s)
		if !ok || s == "" {
			missing = append(missing, f)
			continue
		}
		values[f] = s
	}
	if len(missing) > 0 {
		return Record{}, &ValidationError{Fields: missing, Message: "incomplete completion request"}
	}

	rec := Record{
		ProductCode: values[FieldProductCode],
		ProductName: values[FieldProductName],
		ClientName:  values[FieldClientName],
		CompletedBy: values[FieldCompletedBy],
		Handler:     firstNonEmpty(input, FieldHandler, legacyHandlerField),
		Extra:       map[string]any{},
	}

	for k, v := range input {
		if isReserved(k) {
			continue
		}
		rec.Extra[k] = sanitize(v)
	}

	rec.Timestamp = now.Format(time.RFC3339Nano)
	rec.ProcessingDate = DayOf(now).String()
	rec.ID = NewRecordID(rec, now)
	return rec, nil
}

// NewRecordID builds "{timestamp}-{client prefix}-{product prefix}-{random}".
func NewRecordID(rec Record, now time.Time) string {
	var client strings.Builder
	for _, r := range firstRunes(rec.ClientName, 5) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			client.WriteRune(r)
		}
	}
	product := string(firstRunes(rec.ProductCode, 5))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.Format("20060102150405") + "-" + client.String() + "-" + product + "-" + suffix
}

// =============================================================================
// JSON - Extra fields are flattened into the top-level object
// =============================================================================

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+8)
	for k, v := range r.Extra {
		out[k] = v
	}
	out[FieldID] = r.ID
	out[FieldProductCode] = r.ProductCode
	out[FieldProductName] = r.ProductName
	out[FieldClientName] = r.ClientName
	out[FieldCompletedBy] = r.CompletedBy
	out[FieldHandler] = r.Handler
	out[FieldTimestamp] = r.Timestamp
	out[FieldProcessingDate] = r.ProcessingDate
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	str := func(k string) string {
		s, _ := Coerce(raw[k])
		return s
	}
	*r = Record{
		ID:             str(FieldID),
		ProductCode:    str(FieldProductCode),
		ProductName:    str(FieldProductName),
		ClientName:     str(FieldClientName),
		CompletedBy:    str(FieldCompletedBy),
		Handler:        firstNonEmpty(raw, FieldHandler, legacyHandlerField),
		Timestamp:      str(FieldTimestamp),
		ProcessingDate: str(FieldProcessingDate),
	}
	for k, v := range raw {
		if isReserved(k) {
			continue
		}
		if r.Extra == nil {
			r.Extra = map[string]any{}
		}
		r.Extra[k] = v
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isReserved(k string) bool {
	switch k {
	case FieldID, FieldProductCode, FieldProductName, FieldClientName, FieldCompletedBy,
		FieldHandler, legacyHandlerField, FieldTimestamp, FieldProcessingDate:
		return true
	}
	return false
}

// sanitize keeps JSON scalars and stringifies everything else.
func sanitize(v any) any {
	switch x := v.(type) {
	case nil:
		return NotAvailable
	case string, bool, float64, float32, int, int64, int32:
		return x
	default:
		if s, ok := Coerce(x); ok {
			return s
		}
		b, err := json.Marshal(x)
		if err != nil {
			return NotAvailable
		}
		return string(b)
	}
}

func firstNonEmpty(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := Coerce(m[k]); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return NotAvailable
}

func firstRunes(s string, n int) []rune {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return r
}

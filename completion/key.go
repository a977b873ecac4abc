/*
key.go - Canonical client/product keys

PURPOSE:
  Maps a (client name, product code) pair to the canonical key used for
  de-duplication and completion lookup. Minor data-entry variance in the
  source system (case, spacing, punctuation) must collide to one key.

RULES:
  client:  NFC fold, lowercase, keep Unicode letters and digits only
  product: lowercase, drop ' ', '-', '_'
  key:     "{client}:{product}"

  "Drogaria Sao Joao" / "A-500"  ->  "drogariasaojoao:a500"
  "drogaria sao joao" / "a500"   ->  "drogariasaojoao:a500"

VALIDITY:
  An empty client or an absent product code is invalid. A product code of
  "0" is valid; numeric input is coerced to its string form first.
*/
package completion

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Key is a canonical "client:product" lookup key.
type Key string

// NormalizeKey builds the canonical key for a client/product pair.
func NormalizeKey(client, product string) (Key, error) {
	product = strings.TrimSpace(product)
	if strings.TrimSpace(client) == "" || product == "" {
		return "", fmt.Errorf("%w: client=%q product=%q", ErrInvalidKey, client, product)
	}

	var c strings.Builder
	for _, r := range norm.NFC.String(client) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			c.WriteRune(unicode.ToLower(r))
		}
	}

	var p strings.Builder
	for _, r := range product {
		switch r {
		case ' ', '-', '_':
			continue
		}
		p.WriteRune(unicode.ToLower(r))
	}

	return Key(c.String() + ":" + p.String()), nil
}

// KeyOf coerces loosely typed input before normalizing it.
func KeyOf(client, product any) (Key, error) {
	c, ok := Coerce(client)
	if !ok {
		return "", fmt.Errorf("%w: client %v", ErrInvalidKey, client)
	}
	p, ok := Coerce(product)
	if !ok {
		return "", fmt.Errorf("%w: product %v", ErrInvalidKey, product)
	}
	return NormalizeKey(c, p)
}

// Coerce converts a scalar from an external boundary (JSON body, SQL cell)
// to its string form. nil and unsupported composite values report false.
func Coerce(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", x), true
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x), true
	case float32:
		return formatFloat(float64(x), 32), true
	case float64:
		return formatFloat(x, 64), true
	case time.Time:
		return x.Format(time.RFC3339), true
	case fmt.Stringer:
		return x.String(), true
	case map[string]any, []any:
		return "", false
	default:
		return fmt.Sprint(x), true
	}
}

// formatFloat prints integral values without a fractional part so that a
// JSON number 500 and the string "500" key identically.
func formatFloat(f float64, bits int) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

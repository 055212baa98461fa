package usecase

import (
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/cartly/backend/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	nonDigitRegex = regexp.MustCompile(`\D+`)
	decimalCommaRegex = regexp.MustCompile(`(\d),(\d)`)
)

// minBarcodeDigits is the shortest digit run still trusted as a barcode.
// Receipt OCR regularly misreads totals, dates, and line numbers as
// short digit runs, so anything under 5 digits is treated as absent.
const minBarcodeDigits = 5

// Normalizer converts the loosely-typed records produced by the
// extraction service into RecognizedItem values the matching and
// reconciliation layers can trust. Pure; no side effects beyond
// optional debug logging.
type Normalizer struct {
	enableDebugLogging bool
}

// NewNormalizer creates a new recognition normalizer
func NewNormalizer(enableDebugLogging bool) *Normalizer {
	return &Normalizer{
		enableDebugLogging: enableDebugLogging,
	}
}

// Normalize coerces raw extraction records into recognized items,
// preserving input order. Records whose name is empty after trimming
// are dropped entirely: they can be neither matched nor reported.
func (n *Normalizer) Normalize(records []domain.RawItem) []domain.RecognizedItem {
	items := make([]domain.RecognizedItem, 0, len(records))

	for _, rec := range records {
		name := strings.TrimSpace(coerceString(rec.Field("name")))
		if name == "" {
			if n.enableDebugLogging {
				log.Printf("[NORMALIZE] Dropping record with empty name: %v", rec)
			}
			continue
		}

		items = append(items, domain.RecognizedItem{
			Name:     name,
			Quantity: coerceQuantity(rec.Field("quantity")),
			Price:    coercePrice(rec.Field("price")),
			Barcode:  coerceBarcode(rec.Field("barcode")),
		})
	}

	if n.enableDebugLogging {
		log.Printf("[NORMALIZE] %d records in, %d items out", len(records), len(items))
	}

	return items
}

// coerceString renders a raw field as a string. JSON numbers arrive as
// float64 after decoding; anything else unrepresentable becomes "".
func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	default:
		return ""
	}
}

// coerceQuantity parses a quantity field, defaulting to 1 when the
// value is missing, unparseable, or below 1.
func coerceQuantity(v any) int {
	qty := 1
	switch q := v.(type) {
	case float64:
		qty = int(q)
	case int:
		qty = q
	case string:
		parsed, err := strconv.ParseFloat(normalizeDecimal(q), 64)
		if err != nil {
			return 1
		}
		qty = int(parsed)
	default:
		return 1
	}

	if qty < 1 {
		return 1
	}
	return qty
}

// coercePrice parses a price field, defaulting to 0 when the value is
// missing, unparseable, or negative.
func coercePrice(v any) float64 {
	price := 0.0
	switch p := v.(type) {
	case float64:
		price = p
	case int:
		price = float64(p)
	case string:
		parsed, err := strconv.ParseFloat(normalizeDecimal(p), 64)
		if err != nil {
			return 0
		}
		price = parsed
	default:
		return 0
	}

	if price < 0 {
		return 0
	}
	return price
}

// coerceBarcode strips everything but digits from a candidate barcode.
// Returns "" when the remaining digit run is too short to trust.
func coerceBarcode(v any) string {
	raw := coerceString(v)
	if raw == "" {
		return ""
	}

	digits := nonDigitRegex.ReplaceAllString(raw, "")
	if len(digits) < minBarcodeDigits {
		return ""
	}
	return digits
}

// normalizeDecimal turns "12,90" into "12.90" before parsing. Receipts
// from comma-decimal locales show up both ways.
func normalizeDecimal(s string) string {
	return decimalCommaRegex.ReplaceAllString(strings.TrimSpace(s), "$1.$2")
}

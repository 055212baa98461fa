package domain

import "strings"

// RawItem is a single loosely-typed record returned by the receipt
// extraction service. Field names, casing, and value types are all
// unreliable; only the Recognition Normalizer may consume these.
type RawItem map[string]any

// Field looks up a value by key, ignoring case. Extraction models are
// told to emit lowercase keys but routinely return "Name" or "NAME".
func (r RawItem) Field(key string) any {
	if v, ok := r[key]; ok {
		return v
	}
	for k, v := range r {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

// RecognizedItem is a purchase line item extracted from a receipt image,
// after normalization. Barcode is empty when the receipt carried none
// (or the digits were too few to be trusted).
type RecognizedItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Barcode  string  `json:"barcode,omitempty"`
}

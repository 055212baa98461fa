package domain

// RemainingLine reports the post-decrement state of a cart line that was
// matched during reconciliation. Quantity may be zero, meaning the line
// is about to be removed when the result is applied.
type RemainingLine struct {
	CartLineID string  `json:"cartLineId"`
	Product    Product `json:"product"`
	Quantity   int     `json:"quantity"`
}

// ReconciliationResult is the outcome of matching recognized receipt
// items against a cart. Every recognized item either contributed to a
// Remaining entry or appears verbatim in NotFound.
type ReconciliationResult struct {
	Remaining []RemainingLine  `json:"remaining"`
	NotFound  []RecognizedItem `json:"notFound"`
}

// ScanReport is the payload returned to the caller after a receipt scan:
// the normalized recognized items, the reconciliation lists, and the
// cart as persisted (zero-quantity lines already removed).
type ScanReport struct {
	ScanID     string           `json:"scanId"`
	Recognized []RecognizedItem `json:"recognized"`
	Remaining  []RemainingLine  `json:"remaining"`
	NotFound   []RecognizedItem `json:"notFound"`
	Cart       *Cart            `json:"cart"`
}

package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Values are opaque byte payloads; callers own the encoding.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CartRepository defines the interface for cart persistence.
// GetByID must return carts with product name/barcode populated on every
// line, not just reference ids.
type CartRepository interface {
	GetByID(ctx context.Context, id string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
}

// ReceiptExtractor defines the interface for the external OCR/LLM
// service that turns a receipt image into structured line items.
// A nil error with zero items means the receipt was unreadable.
type ReceiptExtractor interface {
	ExtractItems(ctx context.Context, image []byte) ([]RawItem, error)
}

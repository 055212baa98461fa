package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cartly/backend/internal/domain"
)

// ScanServiceConfig holds configuration for the receipt scan service
type ScanServiceConfig struct {
	CacheTTL            time.Duration
	SimilarityThreshold float64
	EnableDebugLogging  bool
}

// ScanService orchestrates a receipt scan: extraction, normalization,
// reconciliation against the cart, and persistence of the result.
type ScanService struct {
	cache              domain.CacheRepository
	carts              domain.CartRepository
	extractor          domain.ReceiptExtractor
	normalizer         *Normalizer
	reconciler         *Reconciler
	cacheTTL           time.Duration
	enableDebugLogging bool
}

// NewScanService creates a new scan service with dependencies
func NewScanService(
	cache domain.CacheRepository,
	carts domain.CartRepository,
	extractor domain.ReceiptExtractor,
	config ScanServiceConfig,
) *ScanService {
	matcher := NewNameMatcher(MatcherConfig{
		SimilarityThreshold: config.SimilarityThreshold,
		EnableDebugLogging:  config.EnableDebugLogging,
	})

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	return &ScanService{
		cache:              cache,
		carts:              carts,
		extractor:          extractor,
		normalizer:         NewNormalizer(config.EnableDebugLogging),
		reconciler:         NewReconciler(matcher, config.EnableDebugLogging),
		cacheTTL:           cacheTTL,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// ScanReceipt reconciles a cart against a receipt image.
// Flow: check cache -> extract -> normalize -> load cart -> reconcile -> apply -> save.
// The cart snapshot is fetched once; a concurrent edit between fetch
// and save is lost (last-write-wins).
func (s *ScanService) ScanReceipt(ctx context.Context, cartID string, image []byte) (*domain.ScanReport, error) {
	if cartID == "" || len(image) == 0 {
		return nil, domain.ErrInvalidRequest
	}

	recognized, err := s.recognizedItems(ctx, image)
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.GetByID(ctx, cartID)
	if err != nil {
		return nil, err
	}

	result := s.reconciler.Reconcile(recognized, cart.Lines)

	updated := s.reconciler.Apply(cart, result)
	updated.UpdatedAt = time.Now().UTC()

	if err := s.carts.Save(ctx, updated); err != nil {
		return nil, err
	}

	return &domain.ScanReport{
		ScanID:     uuid.NewString(),
		Recognized: recognized,
		Remaining:  result.Remaining,
		NotFound:   result.NotFound,
		Cart:       updated,
	}, nil
}

// recognizedItems returns the normalized items for an image, consulting
// the extraction cache first. The key is the SHA-256 of the image bytes
// so a re-scan of the same photo skips the extraction API entirely.
func (s *ScanService) recognizedItems(ctx context.Context, image []byte) ([]domain.RecognizedItem, error) {
	key := scanCacheKey(image)

	if data, err := s.cache.Get(ctx, key); err == nil {
		var items []domain.RecognizedItem
		if err := json.Unmarshal(data, &items); err == nil {
			if s.enableDebugLogging {
				log.Printf("[SCAN] Cache hit for %s (%d items)", key, len(items))
			}
			return items, nil
		}
		// Corrupt entry; fall through to a fresh extraction
	}

	raw, err := s.extractor.ExtractItems(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailure, err)
	}

	items := s.normalizer.Normalize(raw)

	if data, err := json.Marshal(items); err == nil {
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil && s.enableDebugLogging {
			// Log but don't fail if caching fails
			log.Printf("[SCAN] Cache set failed for %s: %v", key, err)
		}
	}

	return items, nil
}

// scanCacheKey derives the cache key for an uploaded receipt image
func scanCacheKey(image []byte) string {
	sum := sha256.Sum256(image)
	return "scan:" + hex.EncodeToString(sum[:])
}

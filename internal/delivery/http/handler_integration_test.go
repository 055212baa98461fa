package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cartly/backend/config"
	"github.com/cartly/backend/internal/domain"
	"github.com/cartly/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	// Run tests
	exitCode := m.Run()

	// Exit with the test result code
	os.Exit(exitCode)
}

// setupTestRouter creates a test router with default configuration
func setupTestRouter() *gin.Engine {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*", "https://app.cartly.example"},
		},
		Extraction: config.ExtractionConfig{
			APIKey:  "test-api-key",
			BaseURL: "https://api.openai.com",
		},
		Cache: config.CacheConfig{
			Type: "memory",
		},
	}

	// Pass nil for scan service and cart repo - handler returns 501 for those endpoints
	handler := NewHandler(nil, nil)
	if handler == nil {
		panic("setupTestRouter: NewHandler returned nil")
	}

	router := SetupRouter(cfg, handler)
	if router == nil {
		panic("setupTestRouter: SetupRouter returned nil *gin.Engine")
	}

	return router
}

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		if err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "cartly-backend" {
			t.Errorf("service = %v, want cartly-backend", response["service"])
		}
		version, ok := response["version"].(string)
		if !ok || strings.TrimSpace(version) == "" {
			t.Errorf("version = %v, want non-empty string", response["version"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter()

		methods := []string{"POST", "PUT", "DELETE", "PATCH"}

		for _, method := range methods {
			req, _ := http.NewRequest(method, "/health", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

// TestScanReceiptEndpoint tests the receipt scan endpoint without a configured service
func TestScanReceiptEndpoint(t *testing.T) {
	t.Run("returns not implemented status", func(t *testing.T) {
		router := setupTestRouter()

		body, contentType := receiptUpload(t, []byte("fake image bytes"))
		req, _ := http.NewRequest("POST", "/api/v1/carts/cart-1/receipt-scan", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotImplemented {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotImplemented)
		}

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		if err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		errorMsg, ok := response["error"].(string)
		if !ok {
			t.Errorf("error field is not a string: %v", response["error"])
		} else if !strings.Contains(errorMsg, "not configured") {
			t.Errorf("error = %q, want to contain 'not configured'", errorMsg)
		}
	})

	t.Run("validates HTTP method", func(t *testing.T) {
		router := setupTestRouter()

		methods := []string{"GET", "PUT", "DELETE", "PATCH"}

		for _, method := range methods {
			req, _ := http.NewRequest(method, "/api/v1/carts/cart-1/receipt-scan", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})

	t.Run("requires correct path", func(t *testing.T) {
		router := setupTestRouter()

		incorrectPaths := []string{
			"/api/v1/carts/receipt-scan",
			"/api/carts/cart-1/receipt-scan",
			"/carts/cart-1/receipt-scan",
		}

		for _, path := range incorrectPaths {
			req, _ := http.NewRequest("POST", path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Path %s: Status = %d, want %d", path, w.Code, http.StatusNotFound)
			}
		}
	})
}

// TestCORSIntegration tests CORS headers work end-to-end with full router
func TestCORSIntegration(t *testing.T) {
	t.Run("health endpoint has CORS for localhost", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		gotOrigin := w.Header().Get("Access-Control-Allow-Origin")
		if gotOrigin != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", gotOrigin, "http://localhost:3000")
		}

		gotCreds := w.Header().Get("Access-Control-Allow-Credentials")
		if gotCreds != "true" {
			t.Errorf("Access-Control-Allow-Credentials = %q, want %q", gotCreds, "true")
		}
	})

	t.Run("cart endpoint has CORS for app origin", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/api/v1/carts/cart-1", nil)
		req.Header.Set("Origin", "https://app.cartly.example")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		gotOrigin := w.Header().Get("Access-Control-Allow-Origin")
		if gotOrigin != "https://app.cartly.example" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", gotOrigin, "https://app.cartly.example")
		}
	})
}

// TestRecoveryMiddleware tests panic recovery
func TestRecoveryMiddleware(t *testing.T) {
	t.Run("recovers from panic without crashing server", func(t *testing.T) {
		router := setupTestRouter()

		// Add a test route that panics
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		req, _ := http.NewRequest("GET", "/panic", nil)
		w := httptest.NewRecorder()

		// This should not crash the test - recovery middleware should handle it
		router.ServeHTTP(w, req)

		// Gin's default recovery returns 500
		if w.Code != http.StatusInternalServerError {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}

// TestAPIVersioning tests that API v1 routes are correctly versioned
func TestAPIVersioning(t *testing.T) {
	t.Run("v1 routes are accessible", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/api/v1/carts/cart-1", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		// Should return 501 Not Implemented, not 404 Not Found
		if w.Code != http.StatusNotImplemented {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotImplemented)
		}
	})

	t.Run("non-versioned routes return 404", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/api/carts/cart-1", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestJSONResponses tests that all responses are valid JSON
func TestJSONResponses(t *testing.T) {
	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/api/v1/carts/cart-1"},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			router := setupTestRouter()

			req, _ := http.NewRequest(endpoint.method, endpoint.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			gotContentType := w.Header().Get("Content-Type")
			wantContentType := "application/json; charset=utf-8"
			if gotContentType != wantContentType {
				t.Errorf("Content-Type = %q, want %q", gotContentType, wantContentType)
			}

			var response map[string]interface{}
			err := json.Unmarshal(w.Body.Bytes(), &response)
			if err != nil {
				t.Errorf("Response should be valid JSON, got error: %v", err)
			}
		})
	}
}

// receiptUpload builds a multipart body with a "receipt" file field
func receiptUpload(t *testing.T, image []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("receipt", "receipt.jpg")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(image); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

// --- Mock implementations for testing with ScanService ---

// mockCacheRepository is a mock implementation of domain.CacheRepository
type mockCacheRepository struct {
	data map[string][]byte
}

func newMockCacheRepository() *mockCacheRepository {
	return &mockCacheRepository{data: make(map[string][]byte)}
}

func (m *mockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *mockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mockCacheRepository) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

// mockCartRepository is an in-memory implementation of domain.CartRepository
type mockCartRepository struct {
	carts map[string]*domain.Cart
	saved *domain.Cart
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartRepository) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	cart, ok := m.carts[id]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return cart, nil
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	m.carts[cart.ID] = cart
	m.saved = cart
	return nil
}

// mockExtractor is a mock implementation of domain.ReceiptExtractor
type mockExtractor struct {
	items []domain.RawItem
	err   error
}

func (m *mockExtractor) ExtractItems(ctx context.Context, image []byte) ([]domain.RawItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

// setupTestRouterWithService creates a test router with a real ScanService using mocks
func setupTestRouterWithService(cache domain.CacheRepository, carts domain.CartRepository, extractor domain.ReceiptExtractor) *gin.Engine {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
	}

	scanService := usecase.NewScanService(
		cache,
		carts,
		extractor,
		usecase.ScanServiceConfig{
			CacheTTL:            24 * time.Hour,
			SimilarityThreshold: 0.7,
		},
	)

	handler := NewHandler(scanService, carts)
	return SetupRouter(cfg, handler)
}

// TestGetCartWithRepository tests the cart endpoint with a real repository
func TestGetCartWithRepository(t *testing.T) {
	t.Run("returns cart for known id", func(t *testing.T) {
		carts := newMockCartRepository()
		carts.carts["cart-1"] = &domain.Cart{
			ID:     "cart-1",
			UserID: "user-1",
			Lines: []domain.CartLine{
				{ID: "line-1", Product: domain.Product{ID: "p1", Name: "Milk 1L"}, Quantity: 2},
			},
		}

		router := setupTestRouterWithService(newMockCacheRepository(), carts, &mockExtractor{})

		req, _ := http.NewRequest("GET", "/api/v1/carts/cart-1", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var cart domain.Cart
		if err := json.Unmarshal(w.Body.Bytes(), &cart); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if cart.ID != "cart-1" {
			t.Errorf("cart.ID = %q, want cart-1", cart.ID)
		}
		if len(cart.Lines) != 1 {
			t.Errorf("len(cart.Lines) = %d, want 1", len(cart.Lines))
		}
	})

	t.Run("returns 404 for unknown cart", func(t *testing.T) {
		router := setupTestRouterWithService(newMockCacheRepository(), newMockCartRepository(), &mockExtractor{})

		req, _ := http.NewRequest("GET", "/api/v1/carts/missing", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestScanReceiptWithService tests the receipt scan endpoint with a real service
func TestScanReceiptWithService(t *testing.T) {
	seedCart := func() *mockCartRepository {
		carts := newMockCartRepository()
		carts.carts["cart-1"] = &domain.Cart{
			ID:     "cart-1",
			UserID: "user-1",
			Lines: []domain.CartLine{
				{ID: "line-1", Product: domain.Product{ID: "p1", Name: "Milk 1L"}, Quantity: 2},
				{ID: "line-2", Product: domain.Product{ID: "p2", Name: "Bread"}, Quantity: 1},
			},
		}
		return carts
	}

	t.Run("returns scan report for valid upload", func(t *testing.T) {
		carts := seedCart()
		extractor := &mockExtractor{
			items: []domain.RawItem{
				{"name": "milk", "quantity": 1},
			},
		}

		router := setupTestRouterWithService(newMockCacheRepository(), carts, extractor)

		body, contentType := receiptUpload(t, []byte("fake image bytes"))
		req, _ := http.NewRequest("POST", "/api/v1/carts/cart-1/receipt-scan", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}

		var report domain.ScanReport
		if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		if report.ScanID == "" {
			t.Error("expected non-empty scan id")
		}
		if len(report.Recognized) != 1 {
			t.Errorf("len(Recognized) = %d, want 1", len(report.Recognized))
		}
		if len(report.Remaining) != 1 {
			t.Fatalf("len(Remaining) = %d, want 1", len(report.Remaining))
		}
		if report.Remaining[0].Quantity != 1 {
			t.Errorf("Remaining[0].Quantity = %d, want 1", report.Remaining[0].Quantity)
		}
		if carts.saved == nil {
			t.Fatal("expected cart to be saved")
		}
		if got := carts.saved.Lines[0].Quantity; got != 1 {
			t.Errorf("saved milk quantity = %d, want 1", got)
		}
	})

	t.Run("returns 400 when no receipt uploaded", func(t *testing.T) {
		router := setupTestRouterWithService(newMockCacheRepository(), seedCart(), &mockExtractor{})

		req, _ := http.NewRequest("POST", "/api/v1/carts/cart-1/receipt-scan", strings.NewReader(""))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("returns 404 for unknown cart", func(t *testing.T) {
		extractor := &mockExtractor{
			items: []domain.RawItem{{"name": "milk"}},
		}
		router := setupTestRouterWithService(newMockCacheRepository(), newMockCartRepository(), extractor)

		body, contentType := receiptUpload(t, []byte("fake image bytes"))
		req, _ := http.NewRequest("POST", "/api/v1/carts/missing/receipt-scan", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("returns 502 for extraction failure", func(t *testing.T) {
		extractor := &mockExtractor{err: domain.ErrExtractionFailure}
		router := setupTestRouterWithService(newMockCacheRepository(), seedCart(), extractor)

		body, contentType := receiptUpload(t, []byte("fake image bytes"))
		req, _ := http.NewRequest("POST", "/api/v1/carts/cart-1/receipt-scan", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadGateway {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadGateway)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response["error"] == nil {
			t.Error("expected error field in response")
		}
	})

	t.Run("unmatched items are reported not found", func(t *testing.T) {
		carts := seedCart()
		extractor := &mockExtractor{
			items: []domain.RawItem{
				{"name": "champagne", "quantity": 1},
			},
		}

		router := setupTestRouterWithService(newMockCacheRepository(), carts, extractor)

		body, contentType := receiptUpload(t, []byte("fake image bytes"))
		req, _ := http.NewRequest("POST", "/api/v1/carts/cart-1/receipt-scan", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d, body = %s", w.Code, http.StatusOK, w.Body.String())
		}

		var report domain.ScanReport
		if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if len(report.NotFound) != 1 || report.NotFound[0].Name != "champagne" {
			t.Errorf("NotFound = %v, want one entry named champagne", report.NotFound)
		}
	})
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/podexport/backend/config"
	"github.com/podexport/backend/internal/domain"
	"github.com/podexport/backend/internal/infrastructure/cache"
	"github.com/podexport/backend/internal/usecase"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportDir = "/exports"

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func ptr(f float64) *float64 { return &f }

// stubCatalog serves canned POD answers. The maps are read-only once a test
// starts so concurrent enrichment needs no locking.
type stubCatalog struct {
	ids       []string
	idsErr    error
	nutrition map[string]domain.Nutrition
	details   map[string]domain.ProductDetails
	brands    map[string]domain.Brand
	idCalls   atomic.Int32
}

func (s *stubCatalog) ProductIDs(ctx context.Context, field domain.SearchField, keyword string, limit int) ([]string, error) {
	s.idCalls.Add(1)
	if s.idsErr != nil {
		return nil, s.idsErr
	}
	return s.ids, nil
}

func (s *stubCatalog) Nutrition(ctx context.Context, gtin string) (*domain.Nutrition, error) {
	n, ok := s.nutrition[gtin]
	if !ok {
		return nil, domain.ErrNoRecords
	}
	return &n, nil
}

func (s *stubCatalog) Details(ctx context.Context, gtin string) (*domain.ProductDetails, error) {
	d, ok := s.details[gtin]
	if !ok {
		return nil, domain.ErrNoRecords
	}
	return &d, nil
}

func (s *stubCatalog) Brand(ctx context.Context, bsin string) (*domain.Brand, error) {
	b, ok := s.brands[bsin]
	if !ok {
		return nil, domain.ErrNoRecords
	}
	return &b, nil
}

// stubProber reports a picture for every GTIN except the missing ones
type stubProber struct {
	missing map[string]bool
}

func (p *stubProber) Probe(ctx context.Context, gtin string) (string, error) {
	if p.missing[gtin] {
		return "", domain.ErrNonSuccessStatus
	}
	return "http://pics.example.com/gtin-" + gtin[:3] + "/" + gtin + ".jpg", nil
}

func onionsCatalog() *stubCatalog {
	return &stubCatalog{
		ids: []string{"0001111", "0002222", "0003333", "0004444"},
		nutrition: map[string]domain.Nutrition{
			"0001111": {Calories: ptr(40), Carbs: ptr(9.3), Protein: ptr(1.1), Fat: ptr(0.1)},
			"0002222": {Calories: ptr(42)},
		},
		details: map[string]domain.ProductDetails{
			"0001111": {Category: "Onions", BSIN: "QH0T7Z", Name: "Yellow Onions"},
			"0002222": {Category: "Onions", BSIN: "QH0T7Z", Name: "Red Onions"},
			"0004444": {Category: "Onions", BSIN: "ZZ9999", Name: "Pearl Onions"},
		},
		brands: map[string]domain.Brand{
			"QH0T7Z": {Name: "Acme Farms", Website: "http://acme.example"},
		},
	}
}

type testServer struct {
	router  *gin.Engine
	catalog *stubCatalog
	fs      afero.Fs
}

// setupTestServer wires the real export service and file store over an
// in-memory filesystem behind the production router
func setupTestServer(catalog *stubCatalog) *testServer {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
	}

	fs := afero.NewMemMapFs()
	store := cache.NewFileStore(fs, exportDir, cache.MatchExact, zerolog.Nop())
	prober := &stubProber{missing: map[string]bool{"0003333": true}}
	service := usecase.NewExportService(catalog, prober, store, usecase.ExportServiceConfig{ResultLimit: 100}, zerolog.Nop())

	handler := NewHandler(service, zerolog.Nop())
	return &testServer{
		router:  SetupRouter(cfg, handler, zerolog.Nop()),
		catalog: catalog,
		fs:      fs,
	}
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthCheckEndpoint(t *testing.T) {
	server := setupTestServer(onionsCatalog())

	t.Run("returns healthy status", func(t *testing.T) {
		w := server.get("/health")

		require.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "healthy", response["status"])
		assert.Equal(t, "podexport", response["service"])
		assert.NotEmpty(t, response["version"])
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			w := httptest.NewRecorder()
			server.router.ServeHTTP(w, httptest.NewRequest(method, "/health", nil))
			assert.Equal(t, http.StatusNotFound, w.Code, method)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(onionsCatalog())

	w := server.get("/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestSearchEndpoint_FullExport(t *testing.T) {
	server := setupTestServer(onionsCatalog())

	w := server.get("/search/name/onions")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var result domain.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "onions", result.Keyword)
	assert.Equal(t, domain.SourceExport, result.Source)

	// 0003333 has no picture and is discarded
	require.Len(t, result.Products, 3)
	assert.Equal(t, []string{"0001111", "0002222", "0004444"}, domain.Identifiers(result.Products))

	yellow := result.Products[0]
	assert.Equal(t, "http://pics.example.com/gtin-000/0001111.jpg", yellow.Picture)
	require.NotNil(t, yellow.Calories)
	assert.Equal(t, 40.0, *yellow.Calories)
	assert.Equal(t, "Yellow Onions", yellow.Name)

	pearl := result.Products[2]
	assert.Nil(t, pearl.Calories)
	assert.Equal(t, "ZZ9999", pearl.BSIN)

	assert.Equal(t, []domain.Company{
		{BSIN: "QH0T7Z", Name: "Acme Farms", Website: "http://acme.example"},
		{BSIN: "ZZ9999"},
	}, result.Companies)

	exists, err := afero.Exists(server.fs, filepath.Join(exportDir, "onions.json"))
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = afero.Exists(server.fs, filepath.Join(exportDir, "onions-companies.json"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSearchEndpoint_ServesCacheOnRepeat(t *testing.T) {
	server := setupTestServer(onionsCatalog())

	first := server.get("/search/name/onions")
	require.Equal(t, http.StatusOK, first.Code)

	second := server.get("/search/name/Onions")
	require.Equal(t, http.StatusOK, second.Code)

	var firstResult, secondResult domain.SearchResult
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResult))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResult))

	assert.Equal(t, domain.SourceCache, secondResult.Source)
	assert.Equal(t, firstResult.Products, secondResult.Products)
	assert.Equal(t, firstResult.Companies, secondResult.Companies)
	assert.Equal(t, int32(1), server.catalog.idCalls.Load())
}

func TestSearchEndpoint_Quick(t *testing.T) {
	t.Run("returns identifiers without writing files", func(t *testing.T) {
		server := setupTestServer(onionsCatalog())

		w := server.get("/search/category/onions?quick=true")

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{
			"keyword": "onions",
			"source": "export",
			"identifiers": ["0001111", "0002222", "0003333", "0004444"]
		}`, w.Body.String())

		exists, err := afero.DirExists(server.fs, exportDir)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("served from a previous full export", func(t *testing.T) {
		server := setupTestServer(onionsCatalog())
		require.Equal(t, http.StatusOK, server.get("/search/name/onions").Code)

		w := server.get("/search/name/onions?quick=1")

		require.Equal(t, http.StatusOK, w.Code)
		var result domain.QuickResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, domain.SourceCache, result.Source)
		assert.Equal(t, []string{"0001111", "0002222", "0004444"}, result.Identifiers)
		assert.Equal(t, int32(1), server.catalog.idCalls.Load())
	})

	t.Run("quick=false runs the full export", func(t *testing.T) {
		server := setupTestServer(onionsCatalog())

		w := server.get("/search/name/onions?quick=false")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"companies"`)
	})
}

func TestSearchEndpoint_BadRequests(t *testing.T) {
	server := setupTestServer(onionsCatalog())

	tests := []struct {
		name string
		path string
	}{
		{name: "malformed quick flag", path: "/search/name/onions?quick=maybe"},
		{name: "unknown search field", path: "/search/brand/onions"},
		{name: "keyword too long", path: "/search/name/" + strings.Repeat("a", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := server.get(tt.path)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.NotEmpty(t, response.Message)
		})
	}

	assert.Equal(t, int32(0), server.catalog.idCalls.Load())
}

func TestSearchEndpoint_ExportFailure(t *testing.T) {
	catalog := onionsCatalog()
	catalog.idsErr = errors.Join(domain.ErrNetworkFailure, errors.New("connection refused"))
	server := setupTestServer(catalog)

	w := server.get("/search/name/onions")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"export failed"}`, w.Body.String())
}

func TestSearchEndpoint_RequestID(t *testing.T) {
	server := setupTestServer(onionsCatalog())

	w := server.get("/search/name/onions?quick=true")

	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestCORSIntegration(t *testing.T) {
	server := setupTestServer(onionsCatalog())

	req := httptest.NewRequest(http.MethodGet, "/search/name/onions?quick=true", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RecoveryMiddleware())
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
